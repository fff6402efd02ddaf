package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestStatusCoversEveryKind(t *testing.T) {
	want := map[Kind]int{
		KindInternal:              http.StatusInternalServerError,
		KindNotFound:              http.StatusNotFound,
		KindBadRequest:            http.StatusBadRequest,
		KindParse:                 http.StatusBadRequest,
		KindUnauthorized:          http.StatusUnauthorized,
		KindForbidden:             http.StatusForbidden,
		KindForeignKey:            http.StatusBadRequest,
		KindUniqueViolation:       http.StatusBadRequest,
		KindNotNull:               http.StatusBadRequest,
		KindDoesNotExist:          http.StatusNotFound,
		KindDeleted:               http.StatusBadRequest,
		KindUpdateParametersEmpty: http.StatusBadRequest,
		KindCredentialMismatch:    http.StatusUnauthorized,
		KindVerificationFailed:    http.StatusBadRequest,
		KindPermissionDenied:      http.StatusForbidden,
		KindConnection:            http.StatusInternalServerError,
		KindMigration:             http.StatusInternalServerError,
		KindTemplating:            http.StatusInternalServerError,
		KindSession:               http.StatusInternalServerError,
		KindCookie:                http.StatusInternalServerError,
		KindFile:                  http.StatusInternalServerError,
		KindEnv:                   http.StatusInternalServerError,
		KindBackend:               http.StatusInternalServerError,
		KindDatabase:              http.StatusInternalServerError,
	}

	if len(want) != len(kindLabels) {
		t.Fatalf("status table has %d kinds, labels declare %d", len(want), len(kindLabels))
	}

	for kind, status := range want {
		if got := Status(kind); got != status {
			t.Errorf("Status(%s) = %d, want %d", kind, got, status)
		}
	}

	if got := Status(Kind(250)); got != http.StatusInternalServerError {
		t.Fatalf("unknown kind mapped to %d, want 500", got)
	}
}

func TestPublicHidesServerSideDetail(t *testing.T) {
	err := Wrap(KindDatabase, errors.New("pq: relation \"blocklist\" does not exist"), "select failed")
	appErr := As(err)

	if got := appErr.Public(); got != "Internal server error" {
		t.Fatalf("Public() = %q, want generic internal description", got)
	}
	if !strings.Contains(appErr.Error(), "relation") {
		t.Fatalf("Error() should keep the cause for logs, got %q", appErr.Error())
	}
}

func TestPublicShowsClientMessage(t *testing.T) {
	err := BadRequest("ip is required")
	if got := err.Public(); got != "Bad request: ip is required" {
		t.Fatalf("Public() = %q", got)
	}

	if got := New(KindNotFound, "").Public(); got != "Not found" {
		t.Fatalf("Public() without message = %q", got)
	}
}

func TestAsWrapsUnclassifiedErrors(t *testing.T) {
	if As(nil) != nil {
		t.Fatal("As(nil) should be nil")
	}

	raw := errors.New("boom")
	got := As(raw)
	if got.Kind != KindInternal {
		t.Fatalf("kind = %s, want internal", got.Kind)
	}
	if !errors.Is(got, raw) {
		t.Fatal("wrapped error should unwrap to the original")
	}

	classified := fmt.Errorf("handler: %w", Forbidden("nope"))
	if KindOf(classified) != KindForbidden {
		t.Fatalf("KindOf through fmt wrapping = %s", KindOf(classified))
	}
	if !Is(classified, KindForbidden) {
		t.Fatal("Is should see through wrapping")
	}
}

func TestFromDB(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "blocklist_ip_key"}, want: KindUniqueViolation},
		{name: "foreign key", err: &pgconn.PgError{Code: "23503"}, want: KindForeignKey},
		{name: "not null", err: &pgconn.PgError{Code: "23502", ColumnName: "ip"}, want: KindNotNull},
		{name: "check", err: &pgconn.PgError{Code: "23514", ConstraintName: "blocklist_version_family"}, want: KindBadRequest},
		{name: "other pg code", err: &pgconn.PgError{Code: "42P01"}, want: KindDatabase},
		{name: "wrapped pg error", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: KindUniqueViolation},
		{name: "gorm duplicated key", err: gorm.ErrDuplicatedKey, want: KindUniqueViolation},
		{name: "gorm foreign key", err: gorm.ErrForeignKeyViolated, want: KindForeignKey},
		{name: "record not found", err: gorm.ErrRecordNotFound, want: KindDoesNotExist},
		{name: "deadline", err: context.DeadlineExceeded, want: KindConnection},
		{name: "canceled", err: context.Canceled, want: KindConnection},
		{name: "unknown", err: errors.New("driver: bad connection"), want: KindDatabase},
		{name: "already classified", err: BadRequest("x"), want: KindBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDB(tt.err)
			if KindOf(got) != tt.want {
				t.Fatalf("FromDB(%v) kind = %s, want %s", tt.err, KindOf(got), tt.want)
			}
		})
	}

	if FromDB(nil) != nil {
		t.Fatal("FromDB(nil) should be nil")
	}
}

func TestUniqueViolationNeverLeaksDriverText(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint", Detail: "Key (ip)=(10.0.0.0/8) already exists."}
	appErr := As(FromDB(pgErr))

	if appErr.Status() != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", appErr.Status())
	}
	if strings.Contains(appErr.Public(), "Key (ip)") {
		t.Fatalf("public message leaked driver detail: %q", appErr.Public())
	}
}
