package intake

import (
	"strings"
	"testing"

	"github.com/chatforms/intakegate/internal/models"
)

func TestMessageLogAppendAssignsSequentialLocalIDs(t *testing.T) {
	log := NewMessageLog()
	first := log.Append(models.MessageRoleAssistant, "hello")
	second := log.Append(models.MessageRoleUser, "hi")

	if !strings.HasPrefix(first.ID, models.LocalMessageIDPrefix) {
		t.Errorf("expected local prefix on %q", first.ID)
	}
	if first.ID == second.ID {
		t.Errorf("expected distinct ids, got %q twice", first.ID)
	}
	if log.Len() != 2 {
		t.Errorf("expected 2 messages, got %d", log.Len())
	}
	msgs := log.Messages()
	if msgs[0].Content != "hello" || msgs[1].Content != "hi" {
		t.Errorf("messages out of order: %v", msgs)
	}
}

func TestMessageLogDuplicateIDIsNoOp(t *testing.T) {
	log := NewMessageLog()
	if ok := log.AppendMessage(models.Message{ID: "srv-1", Role: models.MessageRoleUser, Content: "a"}); !ok {
		t.Fatalf("first append should succeed")
	}
	if ok := log.AppendMessage(models.Message{ID: "srv-1", Role: models.MessageRoleUser, Content: "b"}); ok {
		t.Errorf("duplicate append should be rejected")
	}
	if log.Len() != 1 {
		t.Errorf("expected log length unchanged at 1, got %d", log.Len())
	}
	if log.Messages()[0].Content != "a" {
		t.Errorf("duplicate append must not replace content")
	}
}

func TestMessageLogMessagesReturnsCopy(t *testing.T) {
	log := NewMessageLog()
	log.Append(models.MessageRoleAssistant, "hello")
	msgs := log.Messages()
	msgs[0].Content = "mutated"
	if log.Messages()[0].Content != "hello" {
		t.Errorf("caller mutation leaked into the log")
	}
}
