package command

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/glyphgrid/sphere/core"
)

func TestResolveImmediatelyMessage_ValidateRejectsEmptyName(t *testing.T) {
	err := (ResolveImmediatelyMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPublishCommand_NilDispatcherReturnsRichError(t *testing.T) {
	var cmd *PublishCommand
	err := cmd.Execute(context.Background(), PublishMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.ServiceErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorInternal, rich.TextCode)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}
}
