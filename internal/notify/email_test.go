package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type fakeSendGrid struct {
	status int
	err    error
	sent   []*mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*sendgridResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, email)
	return &sendgridResponse{StatusCode: f.status}, nil
}

type fakeSES struct {
	err   error
	input *sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	if sender := NewSendGridSender(SendGridConfig{FromEmail: "care@ayurwell.example"}, nil); sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "care@ayurwell.example"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != defaultFromName {
		t.Errorf("expected default from name %q, got %q", defaultFromName, sender.fromName)
	}
}

func TestSendGridSender_Send(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	sender := newSendGridSender(fake, SendGridConfig{FromEmail: "care@ayurwell.example"}, nil)

	err := sender.Send(context.Background(), EmailMessage{To: "ravi@example.com", ToName: "Ravi", Subject: "Hi", Body: "text"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(fake.sent) != 1 || fake.sent[0].Subject != "Hi" {
		t.Fatalf("unexpected sends %+v", fake.sent)
	}
}

func TestSendGridSender_SendErrors(t *testing.T) {
	rejected := newSendGridSender(&fakeSendGrid{status: 401}, SendGridConfig{}, nil)
	if err := rejected.Send(context.Background(), EmailMessage{To: "ravi@example.com"}); err == nil {
		t.Error("expected error for 4xx response")
	}
	failing := newSendGridSender(&fakeSendGrid{err: errors.New("dial tcp")}, SendGridConfig{}, nil)
	if err := failing.Send(context.Background(), EmailMessage{To: "ravi@example.com"}); err == nil {
		t.Error("expected transport error")
	}
	var unset *SendGridSender
	if err := unset.Send(context.Background(), EmailMessage{}); err == nil {
		t.Error("expected error when sender is nil")
	}
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	sender := newSESSender(fake, SESConfig{FromEmail: "care@ayurwell.example", FromName: "Ayurwell"}, nil)

	err := sender.Send(context.Background(), EmailMessage{To: "ravi@example.com", Subject: "Confirmed", Body: "text", HTML: "<p>html</p>"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := aws.ToString(fake.input.FromEmailAddress); got != "Ayurwell <care@ayurwell.example>" {
		t.Errorf("unexpected from address %q", got)
	}
	body := fake.input.Content.Simple.Body
	if aws.ToString(body.Text.Data) != "text" || aws.ToString(body.Html.Data) != "<p>html</p>" {
		t.Errorf("unexpected body %+v", body)
	}

	failing := newSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{}, nil)
	if err := failing.Send(context.Background(), EmailMessage{To: "ravi@example.com"}); err == nil {
		t.Error("expected SES error to surface")
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	if err := NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "ravi@example.com"}); err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}
