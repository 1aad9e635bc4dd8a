package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cspr_rewarder/internal/models"
	"cspr_rewarder/internal/stream"
)

const watchedValidator = "0199cb1b8798cf96dcf2b2290bc6d4a9d262286a5b03593e18fbcd8f2a48b2dcf5"

func decodeFrame(t *testing.T, raw string) stream.Frame {
	t.Helper()
	frame, err := stream.DecodeFrame([]byte(raw))
	require.NoError(t, err)
	return frame
}

func TestClassifier(t *testing.T) {
	t.Parallel()

	classifier := stream.NewClassifier(watchedValidator)

	t.Run("it accepts a delegate to the watched validator", func(t *testing.T) {
		t.Parallel()

		frame := decodeFrame(t, `{
			"extra": {"entry_point_name": "delegate"},
			"data": {"args": {
				"validator": {"parsed": "`+watchedValidator+`"},
				"delegator": {"parsed": "D"},
				"amount": {"parsed": "5000000000"}
			}}
		}`)

		event, ok := classifier.Classify(frame)
		require.True(t, ok)
		assert.Equal(t, "D", event.Delegator)
		assert.Equal(t, watchedValidator, event.Validator)
		assert.Equal(t, "5000000000", event.StakeMotes.String())
		assert.Equal(t, models.KindDelegate, event.Kind)
	})

	t.Run("it accepts a redelegate using the new validator field", func(t *testing.T) {
		t.Parallel()

		frame := decodeFrame(t, `{
			"extra": {"entry_point_name": "redelegate"},
			"data": {"args": {
				"validator": {"parsed": "someone-else"},
				"new_validator": {"parsed": "`+watchedValidator+`"},
				"delegator": {"parsed": "D"},
				"amount": {"parsed": "1000000000"}
			}}
		}`)

		event, ok := classifier.Classify(frame)
		require.True(t, ok)
		assert.Equal(t, models.KindRedelegate, event.Kind)
		assert.Equal(t, watchedValidator, event.Validator)
	})

	t.Run("it rejects delegations to other validators", func(t *testing.T) {
		t.Parallel()

		frame := decodeFrame(t, `{
			"extra": {"entry_point_name": "delegate"},
			"data": {"args": {
				"validator": {"parsed": "someone-else"},
				"delegator": {"parsed": "D"},
				"amount": {"parsed": "5000000000"}
			}}
		}`)

		_, ok := classifier.Classify(frame)
		assert.False(t, ok)
	})

	t.Run("it rejects a redelegate whose old validator is the watched one", func(t *testing.T) {
		t.Parallel()

		frame := decodeFrame(t, `{
			"extra": {"entry_point_name": "redelegate"},
			"data": {"args": {
				"validator": {"parsed": "`+watchedValidator+`"},
				"new_validator": {"parsed": "someone-else"},
				"delegator": {"parsed": "D"},
				"amount": {"parsed": "5000000000"}
			}}
		}`)

		_, ok := classifier.Classify(frame)
		assert.False(t, ok)
	})

	t.Run("it rejects other entry points", func(t *testing.T) {
		t.Parallel()

		for _, entryPoint := range []string{"undelegate", "add_bid", "transfer", ""} {
			frame := decodeFrame(t, `{
				"extra": {"entry_point_name": "`+entryPoint+`"},
				"data": {"args": {
					"validator": {"parsed": "`+watchedValidator+`"},
					"delegator": {"parsed": "D"},
					"amount": {"parsed": "5000000000"}
				}}
			}`)

			_, ok := classifier.Classify(frame)
			assert.False(t, ok, "entry point %q must not classify", entryPoint)
		}
	})

	t.Run("it rejects malformed and non-positive amounts", func(t *testing.T) {
		t.Parallel()

		for _, amount := range []string{"", "not-a-number", "0", "-5"} {
			frame := decodeFrame(t, `{
				"extra": {"entry_point_name": "delegate"},
				"data": {"args": {
					"validator": {"parsed": "`+watchedValidator+`"},
					"delegator": {"parsed": "D"},
					"amount": {"parsed": "`+amount+`"}
				}}
			}`)

			_, ok := classifier.Classify(frame)
			assert.False(t, ok, "amount %q must not classify", amount)
		}
	})

	t.Run("it keeps amounts above 64 bits intact", func(t *testing.T) {
		t.Parallel()

		frame := decodeFrame(t, `{
			"extra": {"entry_point_name": "delegate"},
			"data": {"args": {
				"validator": {"parsed": "`+watchedValidator+`"},
				"delegator": {"parsed": "D"},
				"amount": {"parsed": "340282366920938463463374607431768211455"}
			}}
		}`)

		event, ok := classifier.Classify(frame)
		require.True(t, ok)
		assert.Equal(t, "340282366920938463463374607431768211455", event.StakeMotes.String())
	})
}

func TestDecodeFrame(t *testing.T) {
	t.Parallel()

	t.Run("it fails on malformed JSON", func(t *testing.T) {
		t.Parallel()

		_, err := stream.DecodeFrame([]byte("{not json"))
		assert.Error(t, err)
	})
}
