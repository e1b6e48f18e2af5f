package objectstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// condition is one entry of a POST policy's "conditions" array. Every
// condition serializes as a 3-element JSON array, except content-length-range
// whose second and third elements are numbers rather than strings.
type condition struct {
	matchType string
	target    string
	value     string
}

func (c condition) MarshalJSON() ([]byte, error) {
	if c.matchType == "content-length-range" {
		return json.Marshal([3]any{c.matchType, json.Number(c.target), json.Number(c.value)})
	}
	return json.Marshal([3]string{c.matchType, c.target, c.value})
}

type serializablePolicy struct {
	Expiration string      `json:"expiration"`
	Conditions []condition `json:"conditions"`
}

// PostPolicy builds the base64-encoded JSON policy document and SigV4
// signature a browser needs to POST an object directly to an S3-compatible
// bucket. Every setter returns the receiver so calls can be chained; nothing
// is computed until Build is called.
type PostPolicy struct {
	bucketName        string
	key               string
	keyIsPrefix       bool
	region            string
	accessKeyID       string
	secretAccessKey   string
	expiration        time.Time
	hasExpiration     bool
	contentType       string
	hasContentType    bool
	minLength         uint64
	maxLength         uint64
	hasLengthRange    bool
	extraConditions   []condition
	formData          map[string]string

	// Now returns the instant used for x-amz-date/x-amz-credential. Defaults
	// to time.Now; tests inject a fixed instant for deterministic output.
	Now func() time.Time
}

// NewPostPolicy returns an empty builder ready for chained setters.
func NewPostPolicy() *PostPolicy {
	return &PostPolicy{
		formData: make(map[string]string),
		Now:      time.Now,
	}
}

func (p *PostPolicy) SetBucketName(bucket string) *PostPolicy {
	p.bucketName = bucket
	p.formData["bucket"] = bucket
	return p
}

func (p *PostPolicy) SetRegion(region string) *PostPolicy {
	p.region = region
	return p
}

func (p *PostPolicy) SetAccessKeyID(id string) *PostPolicy {
	if id == "" {
		return p
	}
	p.accessKeyID = id
	return p
}

func (p *PostPolicy) SetSecretAccessKey(key string) *PostPolicy {
	if key == "" {
		return p
	}
	p.secretAccessKey = key
	return p
}

// SetKey sets an exact-match key condition.
func (p *PostPolicy) SetKey(key string) *PostPolicy {
	if key == "" {
		return p
	}
	p.key = key
	p.keyIsPrefix = false
	p.formData["key"] = key
	return p
}

// SetKeyStartsWith sets a prefix-match key condition.
func (p *PostPolicy) SetKeyStartsWith(prefix string) *PostPolicy {
	if prefix == "" {
		return p
	}
	p.key = prefix
	p.keyIsPrefix = true
	p.formData["key"] = prefix
	return p
}

func (p *PostPolicy) SetExpiration(t time.Time) *PostPolicy {
	p.expiration = t
	p.hasExpiration = true
	return p
}

func (p *PostPolicy) SetContentType(ct string) *PostPolicy {
	p.contentType = ct
	p.hasContentType = true
	p.formData["Content-Type"] = ct
	return p
}

// SetContentLengthRange bounds the uploaded object's byte size.
func (p *PostPolicy) SetContentLengthRange(min, max uint64) *PostPolicy {
	p.minLength = min
	p.maxLength = max
	p.hasLengthRange = true
	return p
}

// AppendCondition adds an arbitrary extra condition, in insertion order,
// between the key condition and the x-amz-* conditions.
func (p *PostPolicy) AppendCondition(matchType, target, value string) *PostPolicy {
	p.extraConditions = append(p.extraConditions, condition{matchType, target, value})
	return p
}

// Build validates the accumulated state and returns the form-field map a
// browser submits as multipart/form-data, including the base64 policy
// document and its SigV4 signature.
func (p *PostPolicy) Build() (map[string]string, error) {
	if p.hasLengthRange && p.minLength > p.maxLength {
		return nil, fmt.Errorf("min-length (%d) must be <= max-length (%d)", p.minLength, p.maxLength)
	}
	if !p.hasExpiration {
		return nil, fmt.Errorf("expiration date must be specified")
	}
	if p.key == "" {
		return nil, fmt.Errorf("object key must be specified")
	}
	if p.bucketName == "" {
		return nil, fmt.Errorf("bucket name must be specified")
	}
	if p.region == "" {
		return nil, fmt.Errorf("region must be specified")
	}
	if p.accessKeyID == "" {
		return nil, fmt.Errorf("access key id must be specified")
	}
	if p.secretAccessKey == "" {
		return nil, fmt.Errorf("secret access key must be specified")
	}

	expiration := p.expiration.UTC().Format(time.RFC3339)

	now := p.Now().UTC()
	amzDate := now.Format("20060102T150405Z")
	date := now.Format("20060102")

	credential := fmt.Sprintf("%s/%s/%s/s3/aws4_request", p.accessKeyID, date, p.region)

	keyMatchType := "eq"
	if p.keyIsPrefix {
		keyMatchType = "starts-with"
	}

	conditions := []condition{
		{"eq", "$bucket", p.bucketName},
		{keyMatchType, "$key", p.key},
	}
	if p.hasContentType {
		conditions = append(conditions, condition{"eq", "$Content-Type", p.contentType})
	}
	conditions = append(conditions, p.extraConditions...)
	conditions = append(conditions,
		condition{"eq", "$x-amz-date", amzDate},
		condition{"eq", "$x-amz-algorithm", "AWS4-HMAC-SHA256"},
		condition{"eq", "$x-amz-credential", credential},
	)
	if p.hasLengthRange {
		conditions = append(conditions, condition{
			matchType: "content-length-range",
			target:    fmt.Sprintf("%d", p.minLength),
			value:     fmt.Sprintf("%d", p.maxLength),
		})
	}

	policyJSON, err := json.Marshal(serializablePolicy{Expiration: expiration, Conditions: conditions})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize policy: %w", err)
	}
	policyBase64 := base64.StdEncoding.EncodeToString(policyJSON)

	signingKey := deriveSigningKey(p.secretAccessKey, date, p.region, "s3")
	signature := hex.EncodeToString(hmacSum(signingKey, []byte(policyBase64)))

	p.formData["policy"] = policyBase64
	p.formData["x-amz-date"] = amzDate
	p.formData["x-amz-algorithm"] = "AWS4-HMAC-SHA256"
	p.formData["x-amz-credential"] = credential
	p.formData["x-amz-signature"] = signature

	return p.formData, nil
}

// deriveSigningKey walks the SigV4 HMAC chain:
// HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), service), "aws4_request").
func deriveSigningKey(secret, date, region, service string) []byte {
	kDate := hmacSum([]byte("AWS4"+secret), []byte(date))
	kRegion := hmacSum(kDate, []byte(region))
	kService := hmacSum(kRegion, []byte(service))
	return hmacSum(kService, []byte("aws4_request"))
}

func hmacSum(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}
