package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"github.com/authcore/authcore/internal/models"
)

type TokenRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewTokenRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *TokenRepository {
	return &TokenRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *TokenRepository) Store(ctx context.Context, token *models.AuthToken) error {
	item, err := marshalItem(token)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal auth token for DynamoDB")
		return fmt.Errorf("failed to marshal auth token: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: token.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: token.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to store auth token in DynamoDB")
		return fmt.Errorf("failed to store auth token: %w", err)
	}

	return nil
}

func (r *TokenRepository) Get(ctx context.Context, token string) (*models.AuthToken, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.TokenPK(token)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get auth token: %w", err)
	}

	if result.Item == nil {
		return nil, nil // Token not found
	}

	var authToken models.AuthToken
	if err := attributevalue.UnmarshalMap(result.Item, &authToken); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth token: %w", err)
	}

	return &authToken, nil
}

// Revoke flips IsValid to false. Idempotent: revoking a missing or
// already-revoked token is not an error.
func (r *TokenRepository) Revoke(ctx context.Context, token string) error {
	now := time.Now()

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.TokenPK(token)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression:    aws.String("SET IsValid = :false, UpdatedAt = :now"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":now":   &types.AttributeValueMemberS{Value: timestamp(now)},
		},
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return nil
		}
		r.logger.WithError(err).Error("Failed to revoke auth token in DynamoDB")
		return fmt.Errorf("failed to revoke auth token: %w", err)
	}

	return nil
}

// SweepExpired deletes tokens that are past expiry or revoked. Validation
// rejects those rows on its own, so racing a concurrent validate only
// changes which rejection that caller observes.
func (r *TokenRepository) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	deleted := 0
	var startKey map[string]types.AttributeValue

	for {
		result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			FilterExpression:  aws.String("begins_with(PK, :prefix) AND (ExpiresAt < :now OR IsValid = :false)"),
			ExclusiveStartKey: startKey,
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: "TOKEN#"},
				":now":    &types.AttributeValueMemberS{Value: timestamp(now)},
				":false":  &types.AttributeValueMemberBOOL{Value: false},
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to scan expired tokens: %w", err)
		}

		for _, item := range result.Items {
			_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key: map[string]types.AttributeValue{
					"PK": item["PK"],
					"SK": item["SK"],
				},
			})
			if err != nil {
				r.logger.WithError(err).Warn("Failed to delete expired token, will retry next sweep")
				continue
			}
			deleted++
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	return deleted, nil
}
