package internal

// DefaultRuleName is the name of the catch-all rule every X-Ray account carries. It is also
// the name given to rules arriving without one.
const DefaultRuleName = "Default"

// SamplingRule is an immutable snapshot of one sampling rule received from getSamplingRules.
// https://docs.aws.amazon.com/xray/latest/api/API_SamplingRule.html
type SamplingRule struct {
	RuleName      string
	RuleARN       string
	Priority      int64
	ReservoirSize float64
	FixedRate     float64
	ServiceName   string
	ServiceType   string
	Host          string
	HTTPMethod    string
	URLPath       string
	ResourceARN   string
	Attributes    map[string]string
	Version       int64
}

// newSamplingRule builds a SamplingRule from its wire properties.
func newSamplingRule(p *ruleProperties) SamplingRule {
	name := p.RuleName
	if name == "" {
		name = DefaultRuleName
	}

	var attributes map[string]string
	if len(p.Attributes) > 0 {
		attributes = make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			attributes[k] = v
		}
	}

	return SamplingRule{
		RuleName:      name,
		RuleARN:       p.RuleARN,
		Priority:      p.Priority,
		ReservoirSize: p.ReservoirSize,
		FixedRate:     p.FixedRate,
		ServiceName:   p.ServiceName,
		ServiceType:   p.ServiceType,
		Host:          p.Host,
		HTTPMethod:    p.HTTPMethod,
		URLPath:       p.URLPath,
		ResourceARN:   p.ResourceARN,
		Attributes:    attributes,
		Version:       p.Version,
	}
}

// Equal reports whether both rules carry the same definition. Attributes are compared by
// content, and a nil attribute map equals an empty one.
func (r SamplingRule) Equal(other SamplingRule) bool {
	return r.RuleName == other.RuleName &&
		r.RuleARN == other.RuleARN &&
		r.Priority == other.Priority &&
		r.ReservoirSize == other.ReservoirSize &&
		r.FixedRate == other.FixedRate &&
		r.ServiceName == other.ServiceName &&
		r.ServiceType == other.ServiceType &&
		r.Host == other.Host &&
		r.HTTPMethod == other.HTTPMethod &&
		r.URLPath == other.URLPath &&
		r.ResourceARN == other.ResourceARN &&
		r.Version == other.Version &&
		attributesEqual(r.Attributes, other.Attributes)
}

func attributesEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
