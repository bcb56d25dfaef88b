package keys

// DefaultMaxKeyLength is the longest credential the validator will mark
// client-safe. Anything longer is treated as a pasted blob or token.
const DefaultMaxKeyLength = 500

// Verdict is the outcome of validating a single credential. Constructed
// fresh on every Validate call and never mutated afterwards.
type Verdict struct {
	Valid       bool    `json:"valid"`
	Reason      string  `json:"reason,omitempty"`
	ClientSafe  bool    `json:"client_safe"`
	KeyType     KeyType `json:"key_type"`
	MaskedValue string  `json:"masked_value"`
	Context     string  `json:"context"`
	Detail      string  `json:"detail,omitempty"` // e.g. claimed JWT algorithm
}

// Validator wraps Classify with structural checks: empty input, excessive
// length and JWT-shaped values. Safe to share across goroutines.
type Validator struct {
	maxKeyLength int
	maskShow     int
}

// Option is a functional option for configuring a Validator
type Option func(*Validator)

// WithMaxKeyLength overrides the length guard threshold
func WithMaxKeyLength(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxKeyLength = n
		}
	}
}

// WithMaskShow overrides how many leading characters masks preserve
func WithMaskShow(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maskShow = n
		}
	}
}

// NewValidator creates a Validator with default guards
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		maxKeyLength: DefaultMaxKeyLength,
		maskShow:     DefaultMaskShow,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate checks a raw credential and produces a Verdict. The context string
// names the logical operation or variable the credential arrived from and is
// carried through to logs and audit records.
//
// Check order matters: empty first, then JWT shape (a JWT must never be
// accepted as an API key, even when it contains a safe substring), then
// classification with the length guard on top.
func (v *Validator) Validate(raw, context string) Verdict {
	if raw == "" {
		return Verdict{
			Valid:       false,
			Reason:      "Empty key",
			ClientSafe:  false,
			KeyType:     Secret,
			MaskedValue: MaskValue(raw, v.maskShow),
			Context:     context,
		}
	}

	if LooksLikeJWT(raw) {
		verdict := Verdict{
			Valid:       false,
			Reason:      "JWT token used as API key",
			ClientSafe:  false,
			KeyType:     Secret,
			MaskedValue: MaskValue(raw, v.maskShow),
			Context:     context,
		}
		if alg, ok := jwtAlgorithm(raw); ok {
			verdict.Detail = "alg=" + alg
		}
		return verdict
	}

	keyType := Classify(raw)
	clientSafe := keyType.ClientSafe()

	if len(raw) > v.maxKeyLength {
		clientSafe = false
		keyType = Service
	}

	return Verdict{
		Valid:       true,
		ClientSafe:  clientSafe,
		KeyType:     keyType,
		MaskedValue: MaskValue(raw, v.maskShow),
		Context:     context,
	}
}
