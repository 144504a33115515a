package vault

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAPIError_SentinelMapping(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want error
	}{
		{
			name: "404 maps to not found",
			err:  &APIError{StatusCode: 404},
			want: ErrNotFound,
		},
		{
			name: "400 with cas message maps to check-and-set",
			err: &APIError{
				StatusCode: 400,
				Messages:   []string{"check-and-set parameter did not match the current version"},
			},
			want: ErrCheckAndSet,
		},
		{
			name: "400 cas matching is case-insensitive",
			err: &APIError{
				StatusCode: 400,
				Messages:   []string{"Check-and-Set parameter required for this call"},
			},
			want: ErrCheckAndSet,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.want))
		})
	}
}

func TestAPIError_NoFalsePositives(t *testing.T) {
	plain400 := &APIError{StatusCode: 400, Messages: []string{"invalid request"}}
	assert.False(t, errors.Is(plain400, ErrCheckAndSet))
	assert.False(t, errors.Is(plain400, ErrNotFound))

	server500 := &APIError{StatusCode: 500}
	assert.False(t, errors.Is(server500, ErrNotFound))
	assert.False(t, errors.Is(server500, ErrCheckAndSet))
}

func TestAPIError_Message(t *testing.T) {
	bare := &APIError{StatusCode: 503}
	assert.Contains(t, bare.Error(), "503")

	withMessage := &APIError{StatusCode: 400, Messages: []string{"bad input"}}
	assert.Contains(t, withMessage.Error(), "bad input")
}
