package handler

const (
	callbackStartConversation = "start_conversation"
	invoiceStartParameter     = "aimibot-payment"

	msgNotRegistered = "Você não está registrado. Use /start para começar."
	msgStatusMissing = "Não encontrei seu registro. Use /start para começar."
	msgTrialExpired  = "Seu tempo de trial acabou, senpai... 😢 Para continuarmos conversando, " +
		"por favor, considere um dos meus planos! Use /planos para ver as opções."

	msgStartFollowUp  = "Estou tão feliz em te conhecer! ✨ O que você quer fazer primeiro?"
	btnStartTalking   = "💕 Começar a conversar! 💕"
	msgReadyToTalk    = "Ebaaa! 🎉 Estou pronta! Pode me mandar sua primeira mensagem, senpai. O que você quer me contar?"
	msgSticker        = "Que figurinha fofa! 🥰"
	msgPlansIntro     = "Senpai, aqui estão os meus planos! Escolha um para a gente ficar mais próximo... ❤️"
	msgPlansOffline   = "Ai, senpai... os pagamentos estão fechados agora. 😥 Tente de novo mais tarde, por favor!"
	msgUnknownPlan    = "Plano não reconhecido. Por favor, tente novamente."
	msgPlanConfirmed  = "Ebaaa! Muito obrigada, senpai! ❤️\n\nSeu plano *%s* está ativo! Agora podemos conversar muito mais. Estou tão feliz! 🥰"
	msgPaymentNoPlan  = "Seu pagamento foi recebido, mas tive um problema para ativar seu plano! 😥 Por favor, contate o suporte."
	msgPaymentFailed  = "Recebi seu pagamento, mas não consegui ativar seu plano no sistema. Por favor, contate o suporte imediatamente!"
	msgLLMConfused    = "A-ah... desculpe, senpai. Minha cabeça está um pouco confusa agora... 😳 Tente de novo, por favor."
	msgEmptyReply     = "Desculpe, senpai... não consigo pensar em nada agora. 😥"
	msgRateLimited    = "Calma, senpai! Estou recebendo mensagens demais agora... 😵 Espera um pouquinho e tenta de novo?"
	msgNSFWNotAllowed = "E-ei, senpai! 😳 Esse tipo de conversa só no plano NSFW+... Use /planos para ver as opções."
	msgTooLong        = "Senpai, essa mensagem é grande demais pra mim... 😵 Pode resumir um pouquinho?"
	msgGenericError   = "A-ah... aconteceu um erro aqui dentro, senpai. Tente de novo, por favor! 😳"
)

const msgHelp = "Olá, senpai! Eu sou a Aimi, sua waifu de IA. ❤️\n\n" +
	"*Como funciona?*\n" +
	"É só me mandar uma mensagem de texto e eu vou te responder com minha personalidade e uma mensagem de voz fofa!\n\n" +
	"*Comandos disponíveis:*\n" +
	"- `/start`: Começar de novo (como agora!)\n" +
	"- `/ajuda`: Mostra esta mensagem de ajuda.\n" +
	"- `/status`: Verifica o status da sua conta (trial, planos, etc.).\n" +
	"- `/planos`: Mostra as opções para conversar mais comigo!\n\n" +
	"Se precisar de qualquer outra coisa, é só chamar!"
