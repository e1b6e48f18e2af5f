package objectstore

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBucket          = "the-bucket"
	testRegion          = "eu-central-1"
	testAccessKeyID     = "foo_access_key"
	testSecretAccessKey = "foo_secret_key"
	testObjectKey       = "the-object-key"
)

func fixedNow() time.Time {
	return time.Date(2020, 1, 1, 0, 0, 0, 130000000, time.UTC)
}

func testExpiration() time.Time {
	return time.Date(2020, 1, 1, 1, 2, 3, 0, time.UTC)
}

func TestPostPolicyRequiredFields(t *testing.T) {
	t.Run("bucket name is required", func(t *testing.T) {
		_, err := NewPostPolicy().
			SetRegion(testRegion).
			SetAccessKeyID(testAccessKeyID).
			SetSecretAccessKey(testSecretAccessKey).
			SetKey(testObjectKey).
			SetExpiration(testExpiration()).
			Build()

		assert.EqualError(t, err, "bucket name must be specified")
	})

	t.Run("region is required", func(t *testing.T) {
		_, err := NewPostPolicy().
			SetBucketName(testBucket).
			SetAccessKeyID(testAccessKeyID).
			SetSecretAccessKey(testSecretAccessKey).
			SetKey(testObjectKey).
			SetExpiration(testExpiration()).
			Build()

		assert.EqualError(t, err, "region must be specified")
	})

	t.Run("access key id is required", func(t *testing.T) {
		_, err := NewPostPolicy().
			SetBucketName(testBucket).
			SetRegion(testRegion).
			SetSecretAccessKey(testSecretAccessKey).
			SetKey(testObjectKey).
			SetExpiration(testExpiration()).
			Build()

		assert.EqualError(t, err, "access key id must be specified")
	})

	t.Run("secret access key is required", func(t *testing.T) {
		_, err := NewPostPolicy().
			SetBucketName(testBucket).
			SetRegion(testRegion).
			SetAccessKeyID(testAccessKeyID).
			SetKey(testObjectKey).
			SetExpiration(testExpiration()).
			Build()

		assert.EqualError(t, err, "secret access key must be specified")
	})

	t.Run("expiration is required", func(t *testing.T) {
		_, err := NewPostPolicy().
			SetBucketName(testBucket).
			SetRegion(testRegion).
			SetAccessKeyID(testAccessKeyID).
			SetSecretAccessKey(testSecretAccessKey).
			SetKey(testObjectKey).
			Build()

		assert.EqualError(t, err, "expiration date must be specified")
	})

	t.Run("object key is required", func(t *testing.T) {
		_, err := NewPostPolicy().
			SetBucketName(testBucket).
			SetRegion(testRegion).
			SetAccessKeyID(testAccessKeyID).
			SetSecretAccessKey(testSecretAccessKey).
			SetExpiration(testExpiration()).
			Build()

		assert.EqualError(t, err, "object key must be specified")
	})

	t.Run("min length must not exceed max length", func(t *testing.T) {
		_, err := NewPostPolicy().
			SetBucketName(testBucket).
			SetRegion(testRegion).
			SetAccessKeyID(testAccessKeyID).
			SetSecretAccessKey(testSecretAccessKey).
			SetKey(testObjectKey).
			SetExpiration(testExpiration()).
			SetContentLengthRange(456, 123).
			Build()

		assert.EqualError(t, err, "min-length (456) must be <= max-length (123)")
	})
}

func newFixedPolicy() *PostPolicy {
	p := NewPostPolicy()
	p.Now = fixedNow
	return p
}

func TestPostPolicyBuildSuccessfully(t *testing.T) {
	formData, err := newFixedPolicy().
		SetBucketName(testBucket).
		SetRegion(testRegion).
		SetAccessKeyID(testAccessKeyID).
		SetSecretAccessKey(testSecretAccessKey).
		SetKey(testObjectKey).
		SetExpiration(testExpiration()).
		SetContentLengthRange(123, 456).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "the-object-key", formData["key"])
	assert.Equal(t, "the-bucket", formData["bucket"])
	assert.Equal(t, "AWS4-HMAC-SHA256", formData["x-amz-algorithm"])
	assert.Equal(t, "foo_access_key/20200101/eu-central-1/s3/aws4_request", formData["x-amz-credential"])
	assert.Equal(t, "20200101T000000Z", formData["x-amz-date"])

	policy := decodePolicy(t, formData["policy"])

	expectedConditions := []any{
		[]any{"eq", "$bucket", "the-bucket"},
		[]any{"eq", "$key", "the-object-key"},
		[]any{"eq", "$x-amz-date", "20200101T000000Z"},
		[]any{"eq", "$x-amz-algorithm", "AWS4-HMAC-SHA256"},
		[]any{"eq", "$x-amz-credential", "foo_access_key/20200101/eu-central-1/s3/aws4_request"},
		[]any{"content-length-range", float64(123), float64(456)},
	}

	assert.Equal(t, "2020-01-01T01:02:03Z", policy["expiration"])
	assert.Equal(t, expectedConditions, policy["conditions"])
}

func TestPostPolicyDeterministic(t *testing.T) {
	build := func() map[string]string {
		fd, err := newFixedPolicy().
			SetBucketName(testBucket).
			SetRegion(testRegion).
			SetAccessKeyID(testAccessKeyID).
			SetSecretAccessKey(testSecretAccessKey).
			SetKey(testObjectKey).
			SetExpiration(testExpiration()).
			SetContentLengthRange(123, 456).
			Build()
		require.NoError(t, err)
		return fd
	}

	first := build()
	second := build()

	assert.Equal(t, first["policy"], second["policy"])
	assert.Equal(t, first["x-amz-signature"], second["x-amz-signature"])
}

func TestPostPolicyContentType(t *testing.T) {
	formData, err := newFixedPolicy().
		SetContentType("some/type").
		SetBucketName(testBucket).
		SetRegion(testRegion).
		SetAccessKeyID(testAccessKeyID).
		SetSecretAccessKey(testSecretAccessKey).
		SetKey(testObjectKey).
		SetExpiration(testExpiration()).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "some/type", formData["Content-Type"])

	policy := decodePolicy(t, formData["policy"])
	assert.Contains(t, policy["conditions"], []any{"eq", "$Content-Type", "some/type"})
}

func TestPostPolicyAppendCondition(t *testing.T) {
	formData, err := newFixedPolicy().
		AppendCondition("a", "b", "c").
		SetBucketName(testBucket).
		SetRegion(testRegion).
		SetAccessKeyID(testAccessKeyID).
		SetSecretAccessKey(testSecretAccessKey).
		SetKey(testObjectKey).
		SetExpiration(testExpiration()).
		Build()
	require.NoError(t, err)

	_, hasA := formData["a"]
	assert.False(t, hasA)

	policy := decodePolicy(t, formData["policy"])
	assert.Contains(t, policy["conditions"], []any{"a", "b", "c"})
}

func TestPostPolicyKeyStartsWith(t *testing.T) {
	formData, err := newFixedPolicy().
		SetKeyStartsWith("foo").
		SetBucketName(testBucket).
		SetRegion(testRegion).
		SetAccessKeyID(testAccessKeyID).
		SetSecretAccessKey(testSecretAccessKey).
		SetExpiration(testExpiration()).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "foo", formData["key"])

	policy := decodePolicy(t, formData["policy"])
	assert.Contains(t, policy["conditions"], []any{"starts-with", "$key", "foo"})
}

func decodePolicy(t *testing.T, encoded string) map[string]any {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var policy map[string]any
	require.NoError(t, json.Unmarshal(raw, &policy))
	return policy
}
