package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"aimibot/internal/domain"
)

const (
	skProfile  = "PROFILE#"
	skPrefixTx = "TX#"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores user accounts and purchases in a single DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// userPK returns the partition key shared by a user's profile and purchases.
func userPK(userID int64) string {
	return "USER#" + strconv.FormatInt(userID, 10)
}

func txSK(txID string) string {
	return skPrefixTx + txID
}

func profileKey(userID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: skProfile},
	}
}

// GetUser loads a user profile. found is false when the user never registered.
func (c *Client) GetUser(ctx context.Context, userID int64) (domain.User, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            profileKey(userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.User{}, false, fmt.Errorf("repository: GetUser get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.User{}, false, nil
	}
	u, err := itemToUser(out.Item)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("repository: GetUser decode: %w", err)
	}
	return u, true, nil
}

// CreateUser inserts a profile unless one already exists. created is false
// when the user was already registered.
func (c *Client) CreateUser(ctx context.Context, u domain.User) (bool, error) {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                userItem(u),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("repository: CreateUser: %w", err)
	}
	return true, nil
}

// TouchLastSeen records activity of an existing user.
func (c *Client) TouchLastSeen(ctx context.Context, userID int64, at time.Time) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 profileKey(userID),
		UpdateExpression:    aws.String("SET lastSeenAt = :seen"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":seen": timeAttr(at),
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("repository: TouchLastSeen: %w", err)
	}
	return nil
}

// ActivatePlan switches the user to plan until expiresAt and records the
// purchase in one transaction.
func (c *Client) ActivatePlan(ctx context.Context, userID int64, plan string, expiresAt time.Time, tx domain.Transaction) error {
	if strings.TrimSpace(tx.ID) == "" {
		return errors.New("repository: ActivatePlan: transaction id is required")
	}
	tx.UserID = userID
	tx.Plan = plan

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:           aws.String(c.tableName),
					Key:                 profileKey(userID),
					UpdateExpression:    aws.String("SET currentPlan = :plan, planExpiresAt = :exp, lastSeenAt = :seen"),
					ConditionExpression: aws.String("attribute_exists(PK)"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":plan": &types.AttributeValueMemberS{Value: plan},
						":exp":  timeAttr(expiresAt),
						":seen": timeAttr(tx.CreatedAt),
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                transactionItem(tx),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			switch {
			case conditionFailed(canceled, 0):
				return domain.ErrUserNotFound
			case conditionFailed(canceled, 1):
				return domain.ErrDuplicateTransaction
			}
		}
		return fmt.Errorf("repository: ActivatePlan: %w", err)
	}
	return nil
}

// ListTransactions returns the user's purchases, newest first. Transaction
// sort keys carry the charge id, so every page is read and ordering happens
// here. limit <= 0 returns all of them.
func (c *Client) ListTransactions(ctx context.Context, userID int64, limit int) ([]domain.Transaction, error) {
	p := dynamodb.NewQueryPaginator(c.api, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTx},
		},
	})

	var txs []domain.Transaction
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("repository: ListTransactions query: %w", err)
		}
		for _, item := range out.Items {
			tx, err := itemToTransaction(item)
			if err != nil {
				return nil, fmt.Errorf("repository: ListTransactions unmarshal: %w", err)
			}
			txs = append(txs, tx)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func conditionFailed(e *types.TransactionCanceledException, idx int) bool {
	if idx >= len(e.CancellationReasons) {
		return false
	}
	return aws.ToString(e.CancellationReasons[idx].Code) == "ConditionalCheckFailed"
}

func userItem(u domain.User) map[string]types.AttributeValue {
	plan := u.CurrentPlan
	if plan == "" {
		plan = domain.PlanFree
	}
	item := map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: userPK(u.ID)},
		"SK":          &types.AttributeValueMemberS{Value: skProfile},
		"userId":      &types.AttributeValueMemberN{Value: strconv.FormatInt(u.ID, 10)},
		"firstName":   &types.AttributeValueMemberS{Value: u.FirstName},
		"username":    &types.AttributeValueMemberS{Value: u.Username},
		"currentPlan": &types.AttributeValueMemberS{Value: plan},
	}
	putTime(item, "trialEndsAt", u.TrialEndsAt)
	putTime(item, "planExpiresAt", u.PlanExpiresAt)
	putTime(item, "createdAt", u.CreatedAt)
	putTime(item, "lastSeenAt", u.LastSeenAt)
	return item
}

func transactionItem(tx domain.Transaction) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":       &types.AttributeValueMemberS{Value: userPK(tx.UserID)},
		"SK":       &types.AttributeValueMemberS{Value: txSK(tx.ID)},
		"txId":     &types.AttributeValueMemberS{Value: tx.ID},
		"userId":   &types.AttributeValueMemberN{Value: strconv.FormatInt(tx.UserID, 10)},
		"plan":     &types.AttributeValueMemberS{Value: tx.Plan},
		"amount":   &types.AttributeValueMemberN{Value: strconv.Itoa(tx.Amount)},
		"currency": &types.AttributeValueMemberS{Value: tx.Currency},
	}
	putTime(item, "createdAt", tx.CreatedAt)
	return item
}

func itemToUser(item map[string]types.AttributeValue) (domain.User, error) {
	id, err := int64Attr(item, "userId")
	if err != nil {
		return domain.User{}, err
	}
	firstName, err := strAttr(item, "firstName")
	if err != nil {
		return domain.User{}, err
	}
	username, _ := strAttr(item, "username") // optional on Telegram
	plan, _ := strAttr(item, "currentPlan")
	if plan == "" {
		plan = domain.PlanFree
	}
	u := domain.User{
		ID:          id,
		FirstName:   firstName,
		Username:    username,
		CurrentPlan: plan,
	}
	for key, dst := range map[string]*time.Time{
		"trialEndsAt":   &u.TrialEndsAt,
		"planExpiresAt": &u.PlanExpiresAt,
		"createdAt":     &u.CreatedAt,
		"lastSeenAt":    &u.LastSeenAt,
	} {
		if *dst, err = optionalTimeAttr(item, key); err != nil {
			return domain.User{}, err
		}
	}
	return u, nil
}

func itemToTransaction(item map[string]types.AttributeValue) (domain.Transaction, error) {
	id, err := strAttr(item, "txId")
	if err != nil {
		return domain.Transaction{}, err
	}
	userID, err := int64Attr(item, "userId")
	if err != nil {
		return domain.Transaction{}, err
	}
	amount, err := int64Attr(item, "amount")
	if err != nil {
		return domain.Transaction{}, err
	}
	plan, _ := strAttr(item, "plan")
	currency, _ := strAttr(item, "currency")
	created, err := optionalTimeAttr(item, "createdAt")
	if err != nil {
		return domain.Transaction{}, err
	}
	return domain.Transaction{
		ID:        id,
		UserID:    userID,
		Plan:      plan,
		Amount:    int(amount),
		Currency:  currency,
		CreatedAt: created,
	}, nil
}

func timeAttr(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: t.UTC().Format(time.RFC3339)}
}

func putTime(item map[string]types.AttributeValue, key string, t time.Time) {
	if !t.IsZero() {
		item[key] = timeAttr(t)
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func optionalTimeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	if _, ok := item[key]; !ok {
		return time.Time{}, nil
	}
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return t, nil
}
