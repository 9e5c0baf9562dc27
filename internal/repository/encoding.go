package repository

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// timestamp renders a time for storage and for expression values. One
// format everywhere: whole-second RFC3339 in UTC, so the sweeps'
// lexicographic comparisons order correctly across items written by
// PutItem and by update expressions.
func timestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// marshalItem marshals a record with time fields encoded via timestamp
// instead of the encoder's RFC3339Nano default.
func marshalItem(v interface{}) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMapWithOptions(v, func(o *attributevalue.EncoderOptions) {
		o.EncodeTime = func(t time.Time) (types.AttributeValue, error) {
			return &types.AttributeValueMemberS{Value: timestamp(t)}, nil
		}
	})
}
