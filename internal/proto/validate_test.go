package proto

import "testing"

func TestValidateRejectsUnknownTag(t *testing.T) {
	env := &Envelope{Type: Tag("not_a_real_tag")}
	if err := Validate(env); err == nil {
		t.Fatal("expected an error for an unknown tag")
	}
}

func TestValidateRejectsNilOrEmptyEnvelope(t *testing.T) {
	if err := Validate(nil); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed for a nil envelope, got %v", err)
	}
	if err := Validate(&Envelope{}); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed for an empty-type envelope, got %v", err)
	}
}

func TestValidateRequiresRecipientForDirectMessages(t *testing.T) {
	env := &Envelope{Type: TagTextMessage, Data: &Data{Content: "aGk="}}
	if err := Validate(env); err == nil {
		t.Fatal("expected an error when recipient is missing")
	}
	env.Recipient = "bob"
	if err := Validate(env); err != nil {
		t.Fatalf("expected a well-formed envelope to validate, got %v", err)
	}
}

func TestValidateRequiresGroupIDForJoinGroup(t *testing.T) {
	env := &Envelope{Type: TagJoinGroup}
	if err := Validate(env); err == nil {
		t.Fatal("expected an error when group_id is missing")
	}
	env.GroupID = "g1"
	if err := Validate(env); err != nil {
		t.Fatalf("expected a well-formed envelope to validate, got %v", err)
	}
}

func TestValidateRequiresDataForGroupMessage(t *testing.T) {
	env := &Envelope{Type: TagGroupMessage, GroupID: "g1"}
	if err := Validate(env); err == nil {
		t.Fatal("expected an error when data is missing")
	}
}

func TestValidateRejectsInvalidBase64Content(t *testing.T) {
	env := &Envelope{
		Type:      TagTextMessage,
		Recipient: "bob",
		Data:      &Data{Content: "not-valid-base64!!"},
	}
	if err := Validate(env); err == nil {
		t.Fatal("expected an error for invalid base64 content")
	}
}

func TestValidateRejectsInvalidHexSignature(t *testing.T) {
	env := &Envelope{
		Type:      TagTextMessage,
		Recipient: "bob",
		Data:      &Data{Content: "aGk=", Signature: "not-hex"},
	}
	if err := Validate(env); err == nil {
		t.Fatal("expected an error for an invalid hex signature")
	}
}

func TestValidateAcceptsLoginWithNoExtraFields(t *testing.T) {
	env := &Envelope{Type: TagLogin}
	if err := Validate(env); err != nil {
		t.Fatalf("expected login to require no extra fields, got %v", err)
	}
}

func TestIsClientTag(t *testing.T) {
	if !IsClientTag(TagRegister) {
		t.Fatal("register should be a recognized client tag")
	}
	if IsClientTag(TagHistoryResponse) {
		t.Fatal("history_response is server-originated and must not be a client tag")
	}
}

func TestResponseTag(t *testing.T) {
	if got := ResponseTag(TagLogin); got != "login_response" {
		t.Fatalf("ResponseTag(login) = %q, want login_response", got)
	}
}
