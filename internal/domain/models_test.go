package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemDetails_RemoteTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		details  ItemDetails
		expected int64
	}{
		{"updated present", ItemDetails{PublishedAt: 1000, LastUpdated: 2000}, 2000},
		{"falls back to published", ItemDetails{PublishedAt: 1000}, 1000},
		{"nothing known", ItemDetails{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.details.RemoteTimestamp())
		})
	}
}

func TestDefaultCommonOptions(t *testing.T) {
	opts := DefaultCommonOptions()

	assert.False(t, opts.DryRun)
	assert.False(t, opts.Verbose)
	assert.Zero(t, opts.Limit)
}

func TestAccount_StringHidesPassword(t *testing.T) {
	acc := Account{User: "alice", Password: "s3cret"}

	assert.Equal(t, "alice:***", acc.String())
	assert.NotContains(t, fmt.Sprintf("%v %s", acc, acc), "s3cret")
}
