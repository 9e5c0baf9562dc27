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

type UserRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewUserRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Create stores a new user together with its email pointer item. The
// pointer item is written first with a conditional put, so a duplicate
// email fails before the user item exists.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"PK":     &types.AttributeValueMemberS{Value: models.EmailPK(user.Email)},
			"SK":     &types.AttributeValueMemberS{Value: "METADATA"},
			"UserID": &types.AttributeValueMemberS{Value: user.ID},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return ErrDuplicate
		}
		r.logger.WithError(err).Error("Failed to create email pointer in DynamoDB")
		return fmt.Errorf("failed to create email pointer: %w", err)
	}

	item, err := marshalItem(user)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal user for DynamoDB")
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: user.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: user.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return ErrDuplicate
		}
		r.logger.WithError(err).Error("Failed to create user in DynamoDB")
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{ID: userID}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get user from DynamoDB")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if result.Item == nil {
		return nil, nil // User not found
	}

	var dbUser models.User
	if err := attributevalue.UnmarshalMap(result.Item, &dbUser); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal user from DynamoDB")
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &dbUser, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.EmailPK(email)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get email pointer from DynamoDB")
		return nil, fmt.Errorf("failed to get email pointer: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	userID, ok := result.Item["UserID"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("email pointer item missing UserID")
	}

	return r.GetByID(ctx, userID.Value)
}

// RecordFailedAttempt increments the failed-attempt counter as a single
// atomic update and, when the new count has reached the threshold,
// transitions the account to LOCKED with a conditional update. Returns
// the post-increment count and whether the account is now locked.
func (r *UserRepository) RecordFailedAttempt(ctx context.Context, userID string, threshold int) (int, bool, error) {
	user := &models.User{ID: userID}
	now := time.Now()

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
		},
		UpdateExpression:    aws.String("SET FailedAttempts = FailedAttempts + :one, UpdatedAt = :now"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":now": &types.AttributeValueMemberS{Value: timestamp(now)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to increment failed attempts in DynamoDB")
		return 0, false, fmt.Errorf("failed to increment failed attempts: %w", err)
	}

	var updated models.User
	if err := attributevalue.UnmarshalMap(result.Attributes, &updated); err != nil {
		return 0, false, fmt.Errorf("failed to unmarshal updated user: %w", err)
	}

	if updated.FailedAttempts < threshold || updated.Status != models.UserStatusActive {
		return updated.FailedAttempts, updated.Status == models.UserStatusLocked, nil
	}

	locked, err := r.lockUser(ctx, userID, threshold)
	if err != nil {
		return updated.FailedAttempts, false, err
	}

	return updated.FailedAttempts, locked, nil
}

// lockUser applies the ACTIVE -> LOCKED transition. The condition keeps
// the update a no-op when another handler already locked or an operator
// disabled the account in between.
func (r *UserRepository) lockUser(ctx context.Context, userID string, threshold int) (bool, error) {
	user := &models.User{ID: userID}
	now := time.Now()

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
		},
		UpdateExpression:    aws.String("SET #status = :locked, UpdatedAt = :now"),
		ConditionExpression: aws.String("#status = :active AND FailedAttempts >= :threshold"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":locked":    &types.AttributeValueMemberS{Value: string(models.UserStatusLocked)},
			":active":    &types.AttributeValueMemberS{Value: string(models.UserStatusActive)},
			":threshold": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", threshold)},
			":now":       &types.AttributeValueMemberS{Value: timestamp(now)},
		},
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			// Lost the race to another locker, or the status changed
			// under us. Either way the transition is already settled.
			current, getErr := r.GetByID(ctx, userID)
			if getErr != nil || current == nil {
				return false, getErr
			}
			return current.Status == models.UserStatusLocked, nil
		}
		r.logger.WithError(err).Error("Failed to lock user in DynamoDB")
		return false, fmt.Errorf("failed to lock user: %w", err)
	}

	return true, nil
}

// RecordSuccessfulLogin resets the failed-attempt counter and stamps the
// login time. Conditional on ACTIVE status: locked or disabled accounts
// are left untouched and the call reports false.
func (r *UserRepository) RecordSuccessfulLogin(ctx context.Context, userID string) (bool, error) {
	user := &models.User{ID: userID}
	now := time.Now()

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
		},
		UpdateExpression:    aws.String("SET FailedAttempts = :zero, LastLoginAt = :now, UpdatedAt = :now"),
		ConditionExpression: aws.String("#status = :active"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":   &types.AttributeValueMemberN{Value: "0"},
			":active": &types.AttributeValueMemberS{Value: string(models.UserStatusActive)},
			":now":    &types.AttributeValueMemberS{Value: timestamp(now)},
		},
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return false, nil
		}
		r.logger.WithError(err).Error("Failed to record successful login in DynamoDB")
		return false, fmt.Errorf("failed to record successful login: %w", err)
	}

	return true, nil
}
