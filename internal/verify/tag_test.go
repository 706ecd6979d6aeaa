package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRoundTrip(t *testing.T) {
	for r := ReasonCall; r <= ReasonOther; r++ {
		tag := NewTag(r, 12, 4)
		got, err := ParseTag(tag.String())
		require.NoError(t, err, tag.String())
		assert.Equal(t, tag, got)
	}
	assert.Equal(t, "overflow@3:7", NewTag(ReasonOverflow, 3, 7).String())
}

func TestParseTagErrors(t *testing.T) {
	tests := []struct {
		input   string
		wantErr string
	}{
		{"call", "missing position"},
		{"maybe@1:2", `unknown reason "maybe"`},
		{"call@1", "position must be line:column"},
		{"call@x:2", "line"},
		{"call@1:y", "column"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseTag(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReasonMessages(t *testing.T) {
	assert.Equal(t, "precondition might not hold", ReasonCall.message())
	assert.Equal(t, "possible division by zero", ReasonDiv.message())
	assert.Equal(t, "refinement type error", ReasonOther.message())
	assert.Equal(t, "other", Reason(200).String())
}
