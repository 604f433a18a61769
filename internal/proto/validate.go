package proto

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// requiredFields lists, per tag, which top-level envelope fields must be
// present for the envelope to be well-formed (spec.md §4.A Validation:
// "mismatched type↔required fields").
var requiredFields = map[Tag][]string{
	TagTextMessage:  {"recipient", "data"},
	TagStegoMessage: {"recipient", "data"},
	TagVoiceMessage: {"recipient", "data"},
	TagVoice:        {"recipient", "data"},
	TagFile:         {"recipient", "data"},
	TagPicture:      {"recipient", "data"},
	TagGroupMessage: {"data"},
	TagJoinGroup:    {"group_id"},
	TagAddContact:   {},
}

// Validate checks that env is well-formed per spec.md §4.A: known tag,
// type↔field consistency, valid base64 content, and (if present) a
// verifiable signature. It does not check authentication state — that is
// the router's job (§4.F state machine).
func Validate(env *Envelope) error {
	if env == nil || env.Type == "" {
		return ErrMalformed
	}
	if !IsClientTag(env.Type) {
		return fmt.Errorf("%w: unknown tag %q", ErrMalformed, env.Type)
	}

	for _, field := range requiredFields[env.Type] {
		switch field {
		case "recipient":
			if env.Recipient == "" {
				return fmt.Errorf("%w: %q requires recipient", ErrMalformed, env.Type)
			}
		case "group_id":
			if env.GroupID == "" {
				return fmt.Errorf("%w: %q requires group_id", ErrMalformed, env.Type)
			}
		case "data":
			if env.Data == nil {
				return fmt.Errorf("%w: %q requires data", ErrMalformed, env.Type)
			}
		}
	}

	if env.Data != nil && env.Data.Content != "" {
		if _, err := base64.StdEncoding.DecodeString(env.Data.Content); err != nil {
			return fmt.Errorf("%w: invalid base64 content", ErrMalformed)
		}
		if env.Data.Signature != "" {
			if _, err := hex.DecodeString(env.Data.Signature); err != nil {
				return fmt.Errorf("%w: invalid hex signature", ErrMalformed)
			}
			// Signature cryptographic verification is delegated to the
			// handler that knows the sender's public key; structural
			// validity (valid hex) is all this layer enforces.
		}
	}

	return nil
}
