package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"github.com/authcore/authcore/internal/models"
)

type OTPRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewOTPRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *OTPRepository {
	return &OTPRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Put stores an OTP record, replacing any previous code for the same
// (user, type) pair.
func (r *OTPRepository) Put(ctx context.Context, otp *models.OTPCode) error {
	item, err := marshalItem(otp)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal OTP for DynamoDB")
		return fmt.Errorf("failed to marshal OTP: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: otp.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: otp.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to store OTP in DynamoDB")
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	return nil
}

func (r *OTPRepository) Get(ctx context.Context, userID string, otpType models.OTPType) (*models.OTPCode, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.OTPPK(userID, otpType)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}

	if result.Item == nil {
		return nil, nil // No OTP issued
	}

	var otp models.OTPCode
	if err := attributevalue.UnmarshalMap(result.Item, &otp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OTP: %w", err)
	}

	return &otp, nil
}

// MarkVerified applies the PENDING -> VERIFIED transition. The condition
// makes the transition exactly-once: a concurrent verifier that already
// consumed the code leaves nothing to apply, and the call reports false.
func (r *OTPRepository) MarkVerified(ctx context.Context, userID string, otpType models.OTPType) (bool, error) {
	return r.transition(ctx, userID, otpType, models.OTPStatusVerified)
}

// MarkExpired applies the PENDING -> EXPIRED transition (timeout or
// attempt cap). Reports false if the record already left PENDING.
func (r *OTPRepository) MarkExpired(ctx context.Context, userID string, otpType models.OTPType) (bool, error) {
	return r.transition(ctx, userID, otpType, models.OTPStatusExpired)
}

func (r *OTPRepository) transition(ctx context.Context, userID string, otpType models.OTPType, to models.OTPStatus) (bool, error) {
	now := time.Now()

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.OTPPK(userID, otpType)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression:    aws.String("SET #status = :to, UpdatedAt = :now"),
		ConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":      &types.AttributeValueMemberS{Value: string(to)},
			":pending": &types.AttributeValueMemberS{Value: string(models.OTPStatusPending)},
			":now":     &types.AttributeValueMemberS{Value: timestamp(now)},
		},
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return false, nil
		}
		r.logger.WithError(err).Error("Failed to transition OTP status in DynamoDB")
		return false, fmt.Errorf("failed to transition OTP status: %w", err)
	}

	return true, nil
}

// IncrementAttempts bumps the attempt counter atomically while the
// record is still PENDING and returns the post-increment count.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, userID string, otpType models.OTPType) (int, error) {
	now := time.Now()

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.OTPPK(userID, otpType)},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression:    aws.String("SET Attempts = Attempts + :one, UpdatedAt = :now"),
		ConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":     &types.AttributeValueMemberN{Value: "1"},
			":pending": &types.AttributeValueMemberS{Value: string(models.OTPStatusPending)},
			":now":     &types.AttributeValueMemberS{Value: timestamp(now)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			// Record left PENDING under us; the caller re-reads and
			// reports the terminal state instead.
			return 0, nil
		}
		r.logger.WithError(err).Error("Failed to increment OTP attempts in DynamoDB")
		return 0, fmt.Errorf("failed to increment OTP attempts: %w", err)
	}

	attempts, ok := result.Attributes["Attempts"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("updated OTP item missing Attempts")
	}

	count, err := strconv.Atoi(attempts.Value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse OTP attempts: %w", err)
	}

	return count, nil
}

// ExpireStalePending transitions PENDING records already past their
// expiry to EXPIRED. Abandoned codes the user never verified go through
// here so a later sweep can reclaim them. Each transition reuses the
// conditional update, so a concurrent verifier still wins.
func (r *OTPRepository) ExpireStalePending(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	var startKey map[string]types.AttributeValue

	for {
		result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			FilterExpression:  aws.String("begins_with(PK, :prefix) AND #status = :pending AND ExpiresAt < :now"),
			ExclusiveStartKey: startKey,
			ExpressionAttributeNames: map[string]string{
				"#status": "Status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix":  &types.AttributeValueMemberS{Value: "OTP#"},
				":pending": &types.AttributeValueMemberS{Value: string(models.OTPStatusPending)},
				":now":     &types.AttributeValueMemberS{Value: timestamp(now)},
			},
		})
		if err != nil {
			return expired, fmt.Errorf("failed to scan stale pending OTPs: %w", err)
		}

		for _, item := range result.Items {
			var otp models.OTPCode
			if err := attributevalue.UnmarshalMap(item, &otp); err != nil {
				r.logger.WithError(err).Warn("Failed to unmarshal stale pending OTP, skipping")
				continue
			}
			applied, err := r.MarkExpired(ctx, otp.UserID, otp.Type)
			if err != nil {
				r.logger.WithError(err).Warn("Failed to expire stale pending OTP, will retry next sweep")
				continue
			}
			if applied {
				expired++
			}
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	return expired, nil
}

// SweepStale deletes records whose expiry is older than the cutoff.
// Scan plus per-item delete keeps the sweep safe to run alongside live
// verification traffic.
func (r *OTPRepository) SweepStale(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	var startKey map[string]types.AttributeValue

	for {
		result, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			FilterExpression:  aws.String("begins_with(PK, :prefix) AND ExpiresAt < :cutoff"),
			ExclusiveStartKey: startKey,
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: "OTP#"},
				":cutoff": &types.AttributeValueMemberS{Value: timestamp(cutoff)},
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to scan stale OTPs: %w", err)
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
				r.logger.WithError(err).Warn("Failed to delete stale OTP, will retry next sweep")
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
