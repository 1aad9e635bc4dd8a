package stream

import (
	"encoding/json"
	"fmt"
	"math/big"

	"cspr_rewarder/internal/models"
)

// Frame is the structured payload of a deploy event frame as sent by the
// streaming API. Keepalive frames are not JSON and never reach this type.
type Frame struct {
	Extra struct {
		EntryPointName string `json:"entry_point_name"`
	} `json:"extra"`
	Data struct {
		Args struct {
			Validator    Arg `json:"validator"`
			NewValidator Arg `json:"new_validator"`
			Delegator    Arg `json:"delegator"`
			Amount       Arg `json:"amount"`
		} `json:"args"`
	} `json:"data"`
}

type Arg struct {
	Parsed string `json:"parsed"`
}

func DecodeFrame(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("failed to decode event frame: %w", err)
	}
	return frame, nil
}

// Classifier decides whether a decoded frame is a delegation to the watched
// validator. It is stateless apart from the validator constant.
type Classifier struct {
	validator string
}

func NewClassifier(validator string) *Classifier {
	return &Classifier{validator: validator}
}

// Classify returns the extracted DelegationEvent and true when the frame is a
// delegate or redelegate directed at the watched validator. A redelegate's
// destination is carried in new_validator. Anything else returns false.
func (c *Classifier) Classify(frame Frame) (models.DelegationEvent, bool) {
	var validator string
	var kind models.EventKind

	switch frame.Extra.EntryPointName {
	case "delegate":
		validator = frame.Data.Args.Validator.Parsed
		kind = models.KindDelegate
	case "redelegate":
		validator = frame.Data.Args.NewValidator.Parsed
		kind = models.KindRedelegate
	default:
		return models.DelegationEvent{}, false
	}

	if validator != c.validator {
		return models.DelegationEvent{}, false
	}

	motes, ok := new(big.Int).SetString(frame.Data.Args.Amount.Parsed, 10)
	if !ok || motes.Sign() <= 0 {
		return models.DelegationEvent{}, false
	}

	return models.DelegationEvent{
		Delegator:  frame.Data.Args.Delegator.Parsed,
		Validator:  validator,
		StakeMotes: motes,
		Kind:       kind,
	}, true
}
