package vault

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructorsCarryExactCodesAndStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    *VaultError
		status int
		code   int
	}{
		{"unauthorized", Unauthorized("x"), 401, CodeUnauthorized},
		{"not found", NotFound(), 404, CodeNotFound},
		{"method not allowed", MethodNotAllowed(), 405, CodeMethodNotAllowed},
		{"field required", FieldRequired("username"), 409, CodeFieldRequired},
		{"user does not exist", UserDoesNotExist(), 401, CodeUserDoesNotExist},
		{"challenge mismatch", ChallengeMismatch(), 401, CodeChallengeMismatch},
		{"database error", DatabaseError(errors.New("x")), 500, CodeDatabaseError},
		{"object store error", ObjectStoreError(errors.New("x")), 500, CodeObjectStoreError},
		{"unexpected error", UnexpectedError(), 500, CodeUnexpectedError},
		{"generic bad request", GenericBadRequest("x"), 400, CodeGenericBadRequest},
		{"policy data error", PolicyDataError(errors.New("x")), 500, CodePolicyDataError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Status)
			assert.Equal(t, tc.code, tc.err.Code)
		})
	}
}

func TestWriteErrorProducesMatchingEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, FieldRequired("filename"))

	assert.Equal(t, 409, rec.Code)

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, 409, env.Status)
	assert.Equal(t, CodeFieldRequired, env.Error.Code)
	assert.Contains(t, env.Error.Message, "filename")
}
