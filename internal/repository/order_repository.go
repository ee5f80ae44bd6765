package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/ashgoren/registration-service/internal/domain"
	pkgconfig "github.com/ashgoren/registration-service/pkg/config"
)

var ErrOrderNotFound = errors.New("order not found")

const (
	statusIndex     = "GSI1"
	counterPK       = "COUNTER#people"
	metadataSK      = "METADATA"
	counterAttr     = "count"
	timestampLayout = time.RFC3339
)

// DynamoAPI is the slice of the DynamoDB client the repository uses.
// *dynamodb.Client satisfies it; tests substitute a fake.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type OrderRepository struct {
	client    DynamoAPI
	tableName string
}

func NewDynamoDBClient(cfg *pkgconfig.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsCfg), nil
}

func NewOrderRepository(client DynamoAPI, tableName string) *OrderRepository {
	return &OrderRepository{
		client:    client,
		tableName: tableName,
	}
}

// SavePending writes (or idempotently re-writes) a pending order and
// returns its id. Status, payment id and creation time are always
// stamped server-side; a stale or forged client payload cannot set
// them.
func (r *OrderRepository) SavePending(ctx context.Context, orderID string, payload map[string]interface{}) (string, error) {
	filtered := FilterOrderFields(payload)

	if orderID == "" {
		orderID = uuid.New().String()
	}
	now := time.Now().UTC()

	filtered["order_id"] = orderID
	filtered["status"] = string(domain.OrderStatusPending)
	filtered["payment_id"] = domain.PaymentIDPending
	filtered["created_at"] = now.Format(timestampLayout)

	av, err := attributevalue.MarshalMap(filtered)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pending order: %w", err)
	}

	av["PK"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("ORDER#%s", orderID)}
	av["SK"] = &types.AttributeValueMemberS{Value: metadataSK}
	av["GSI1PK"] = &types.AttributeValueMemberS{Value: fmt.Sprintf("STATUS#%s", domain.OrderStatusPending)}
	av["GSI1SK"] = &types.AttributeValueMemberS{Value: now.Format(timestampLayout)}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put pending order: %w", err)
	}

	return orderID, nil
}

// SaveFinal merges the completion payload into the existing order
// document (fields absent from the payload survive from the pending
// write), stamps the completion time and flips the status, then
// bumps the people counter by the order's headcount.
//
// The merge and the counter increment are two writes with no
// transaction around them; the counter only gates a waitlist
// threshold and may lag or double-count under crash or replay.
func (r *OrderRepository) SaveFinal(ctx context.Context, orderID string, payload map[string]interface{}) error {
	if orderID == "" {
		return &domain.InvalidArgumentError{Msg: "order id required for final save"}
	}

	filtered := FilterOrderFields(payload)
	now := time.Now().UTC()

	filtered["status"] = string(domain.OrderStatusFinal)
	filtered["completed_at"] = now.Format(timestampLayout)
	filtered["GSI1PK"] = fmt.Sprintf("STATUS#%s", domain.OrderStatusFinal)

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	expr := ""
	i := 0
	for k, v := range filtered {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal field %s: %w", k, err)
		}
		if i > 0 {
			expr += ", "
		}
		expr += fmt.Sprintf("#f%d = :v%d", i, i)
		names[fmt.Sprintf("#f%d", i)] = k
		values[fmt.Sprintf(":v%d", i)] = av
		i++
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ORDER#%s", orderID)},
			"SK": &types.AttributeValueMemberS{Value: metadataSK},
		},
		UpdateExpression:          aws.String("SET " + expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("failed to finalize order %s: %w", orderID, err)
	}

	// A merge payload may omit people entirely; the headcount then
	// comes from the stored order, so the counter still moves by the
	// order's real size.
	n := PeopleCountOf(payload)
	if n == 0 {
		order, err := r.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s finalized but headcount read failed: %w", orderID, err)
		}
		n = len(order.People)
	}
	if n > 0 {
		if err := r.incrementPeopleCounter(ctx, n); err != nil {
			return fmt.Errorf("order %s finalized but counter increment failed: %w", orderID, err)
		}
	}
	return nil
}

// GetOrder point-reads one order document.
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ORDER#%s", orderID)},
			"SK": &types.AttributeValueMemberS{Value: metadataSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrOrderNotFound
	}

	var order domain.Order
	if err := attributevalue.UnmarshalMap(out.Item, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) incrementPeopleCounter(ctx context.Context, n int) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: counterPK},
			"SK": &types.AttributeValueMemberS{Value: metadataSK},
		},
		UpdateExpression: aws.String("ADD #c :n"),
		ExpressionAttributeNames: map[string]string{
			"#c": counterAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", n)},
		},
	})
	return err
}

// PeopleCount reads the counter aggregate. A missing counter item
// reads as zero.
func (r *OrderRepository) PeopleCount(ctx context.Context) (int, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: counterPK},
			"SK": &types.AttributeValueMemberS{Value: metadataSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, err
	}
	if out.Item == nil {
		return 0, nil
	}

	var counter struct {
		Count int `dynamodbav:"count"`
	}
	if err := attributevalue.UnmarshalMap(out.Item, &counter); err != nil {
		return 0, err
	}
	return counter.Count, nil
}

// GetOrders queries orders by status in creation order. When
// testPartition is non-nil the result is restricted to that side of
// the sandbox/production partition.
func (r *OrderRepository) GetOrders(ctx context.Context, status domain.OrderStatus, testPartition *bool) ([]domain.Order, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(statusIndex),
		KeyConditionExpression: aws.String("GSI1PK = :s"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: fmt.Sprintf("STATUS#%s", status)},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if testPartition != nil {
		input.FilterExpression = aws.String("is_test_order = :t")
		input.ExpressionAttributeValues[":t"] = &types.AttributeValueMemberBOOL{Value: *testPartition}
	}

	var orders []domain.Order
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s orders: %w", status, err)
		}

		var page []domain.Order
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal orders: %w", err)
		}
		orders = append(orders, page...)

		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return orders, nil
}

// FindFinalByPaymentID looks up the final order carrying a processor
// payment id, scoped to one side of the sandbox/production partition.
// The status index is eventually consistent, which is why the webhook
// path retries this lookup.
func (r *OrderRepository) FindFinalByPaymentID(ctx context.Context, paymentID string, isTest bool) (*domain.Order, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(statusIndex),
		KeyConditionExpression: aws.String("GSI1PK = :s"),
		FilterExpression:       aws.String("payment_id = :p AND is_test_order = :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: fmt.Sprintf("STATUS#%s", domain.OrderStatusFinal)},
			":p": &types.AttributeValueMemberS{Value: paymentID},
			":t": &types.AttributeValueMemberBOOL{Value: isTest},
		},
	}

	// The filter expression runs after each page is read, so a page
	// can come back empty while later pages still hold the match.
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		if len(out.Items) > 0 {
			var order domain.Order
			if err := attributevalue.UnmarshalMap(out.Items[0], &order); err != nil {
				return nil, err
			}
			return &order, nil
		}
		if out.LastEvaluatedKey == nil {
			return nil, ErrOrderNotFound
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
