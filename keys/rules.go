package keys

// Rule maps a lowercase substring to the classification it implies.
// Rules live in ordered slices, not maps: evaluation order is part of the
// classification contract and the first matching rule wins.
type Rule struct {
	Substring string
	Type      KeyType
}

// safeRules are checked before dangerousRules. A key containing both a safe
// and a dangerous substring (e.g. "anon_service_key") classifies by the safe
// rule. This permissiveness is deliberate: provider-issued anon/public keys
// routinely embed words like "service" in their names, and flipping the
// precedence would lock front-ends out of keys that are meant for them.
// Do not reorder without revisiting every consumer of ClientSafe.
var safeRules = []Rule{
	{"anon", Anon},
	{"public", Public},
	{"readonly", Restricted},
	{"limited", Restricted},
	{"client", Restricted},
}

// dangerousRules map to Service unless the substring implies full
// administrative reach.
var dangerousRules = []Rule{
	{"service_role", Service},
	{"service_", Service},
	{"sk_", Service},
	{"rk_", Service},
	{"secret_", Service},
	{"admin", Admin},
	{"root", Admin},
	{"master", Service},
	{"super", Service},
	{"confidential", Service},
	{"private", Service},
	{"bearer_", Service},
	{"auth_", Service},
	{"system_", Service},
}

// SafeRules returns a copy of the safe rule table in evaluation order
func SafeRules() []Rule {
	out := make([]Rule, len(safeRules))
	copy(out, safeRules)
	return out
}

// DangerousRules returns a copy of the dangerous rule table in evaluation order
func DangerousRules() []Rule {
	out := make([]Rule, len(dangerousRules))
	copy(out, dangerousRules)
	return out
}
