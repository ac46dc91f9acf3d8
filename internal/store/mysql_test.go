package store

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestProcedureUnavailableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"missing procedure", &mysql.MySQLError{Number: 1305, Message: "PROCEDURE sano.sp_post_reserve does not exist"}, true},
		{"invalid conn", mysql.ErrInvalidConn, true},
		{"conn done", sql.ErrConnDone, true},
		{"signal exception", &mysql.MySQLError{Number: 1644, Message: "post full"}, false},
		{"syntax error", &mysql.MySQLError{Number: 1064, Message: "syntax"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := procedureUnavailable(tc.err); got != tc.want {
			t.Errorf("%s: procedureUnavailable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCapacityRejectedClassification(t *testing.T) {
	if !capacityRejected(&mysql.MySQLError{Number: 1644, Message: "post full"}) {
		t.Error("full signal not classified as rejection")
	}
	if capacityRejected(&mysql.MySQLError{Number: 1644, Message: "something else"}) {
		t.Error("unrelated signal classified as rejection")
	}
	if capacityRejected(errors.New("boom")) {
		t.Error("plain error classified as rejection")
	}
}

func TestDecodeOccupants(t *testing.T) {
	got, err := decodeOccupants(sql.NullString{Valid: true, String: `["a","b"]`})
	if err != nil || len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("decode = %v, %v", got, err)
	}
	for _, raw := range []sql.NullString{
		{},
		{Valid: true, String: ""},
		{Valid: true, String: "null"},
	} {
		got, err := decodeOccupants(raw)
		if err != nil {
			t.Fatalf("decode %q: %v", raw.String, err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("decode %q = %v, want empty non-nil", raw.String, got)
		}
	}
	if _, err := decodeOccupants(sql.NullString{Valid: true, String: "{bad"}); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
