package internal

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	xraypattern "github.com/aws/aws-xray-sdk-go/pattern"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
)

// Attribute keys of the stable HTTP semantic conventions, looked up after their older
// counterparts from semconv.
const (
	urlPathKey           = attribute.Key("url.path")
	urlFullKey           = attribute.Key("url.full")
	httpRequestMethodKey = attribute.Key("http.request.method")
	serverAddressKey     = attribute.Key("server.address")
	clientAddressKey     = attribute.Key("client.address")
)

// cloudPlatformMapping maps cloud.platform values to X-Ray service types.
var cloudPlatformMapping = map[string]string{
	semconv.CloudPlatformAWSLambda.Value.AsString():           "AWS::Lambda::Function",
	semconv.CloudPlatformAWSElasticBeanstalk.Value.AsString(): "AWS::ElasticBeanstalk::Environment",
	semconv.CloudPlatformAWSEC2.Value.AsString():              "AWS::EC2::Instance",
	semconv.CloudPlatformAWSECS.Value.AsString():              "AWS::ECS::Container",
	semconv.CloudPlatformAWSEKS.Value.AsString():              "AWS::EKS::Container",
}

// wildcardMatch matches text against a pattern where '*' stands for any sequence and '?' for
// any single character, ignoring case. Anything but a string value never matches a pattern
// other than "*".
func wildcardMatch(pattern string, text attribute.Value) bool {
	if pattern == "*" {
		return true
	}
	if text.Type() != attribute.STRING {
		return false
	}

	s := text.AsString()
	if isPlainASCII(pattern) && isPlainASCII(s) && !strings.ContainsAny(s, "*?") {
		return xraypattern.WildcardMatchCaseInsensitive(pattern, s)
	}
	return wildcardRegexp(pattern).MatchString(s)
}

// wildcardRegexps caches the compiled form of patterns matched against multi-byte text or
// text carrying wildcard characters, where the byte matcher of xraypattern is wrong.
var wildcardRegexps sync.Map // map[string]*regexp.Regexp

func wildcardRegexp(pattern string) *regexp.Regexp {
	if re, ok := wildcardRegexps.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}

	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re := regexp.MustCompile(b.String())
	wildcardRegexps.Store(pattern, re)
	return re
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// attributeMatch reports whether every attribute required by the rule is present in attrs
// with a value matching its pattern. Attributes the rule does not mention are ignored.
func attributeMatch(attrs map[attribute.Key]attribute.Value, ruleAttributes map[string]string) bool {
	if len(ruleAttributes) == 0 {
		return true
	}
	if len(ruleAttributes) > len(attrs) {
		return false
	}

	for key, pattern := range ruleAttributes {
		value, ok := attrs[attribute.Key(key)]
		if !ok || !wildcardMatch(pattern, value) {
			return false
		}
	}
	return true
}

// spanProperties is what a rule is matched against, derived from span attributes and the
// resource. Absent properties keep the zero attribute.Value.
type spanProperties struct {
	httpTarget  attribute.Value
	httpMethod  attribute.Value
	httpHost    attribute.Value
	serviceName attribute.Value
	serviceType attribute.Value
	resourceARN attribute.Value
}

func newSpanProperties(attrs map[attribute.Key]attribute.Value, res *resource.Resource) spanProperties {
	props := spanProperties{
		httpTarget: lookup(attrs, semconv.HTTPTargetKey, urlPathKey),
		httpMethod: lookup(attrs, semconv.HTTPMethodKey, httpRequestMethodKey),
		httpHost:   lookup(attrs, semconv.HTTPHostKey, serverAddressKey, clientAddressKey),
	}

	if props.httpTarget.Type() == attribute.INVALID {
		props.httpTarget = attribute.StringValue("/")
		if httpURL := lookup(attrs, semconv.HTTPURLKey, urlFullKey); httpURL.Type() == attribute.STRING {
			props.httpTarget = attribute.StringValue(urlPath(httpURL.AsString()))
		}
	}

	if res != nil {
		resAttrs := attributeMap(res.Attributes())

		props.serviceName = attribute.StringValue("")
		if v, ok := resAttrs[semconv.ServiceNameKey]; ok {
			props.serviceName = v
		}
		if v, ok := resAttrs[semconv.CloudPlatformKey]; ok && v.Type() == attribute.STRING {
			if serviceType, ok := cloudPlatformMapping[v.AsString()]; ok {
				props.serviceType = attribute.StringValue(serviceType)
			}
		}
		props.resourceARN = resourceARN(attrs, resAttrs)
	}
	return props
}

// urlPath returns the path component of a full URL, "/" when it has none or cannot be parsed.
func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// resourceARN prefers the container and cluster ARNs of the resource. On Lambda the function
// ARN is taken from faas.id or the invoked ARN of the span.
func resourceARN(attrs, resAttrs map[attribute.Key]attribute.Value) attribute.Value {
	if v := lookup(resAttrs, semconv.AWSECSContainerARNKey, semconv.AWSECSClusterARNKey, semconv.AWSEKSClusterARNKey); v.Type() != attribute.INVALID {
		return v
	}

	if platform, ok := resAttrs[semconv.CloudPlatformKey]; ok && platform.Type() == attribute.STRING &&
		platform.AsString() == semconv.CloudPlatformAWSLambda.Value.AsString() {
		if v, ok := resAttrs[semconv.FaaSIDKey]; ok {
			return v
		}
		return attrs[semconv.AWSLambdaInvokedARNKey]
	}
	return attribute.Value{}
}

// lookup returns the value of the first key present in attrs.
func lookup(attrs map[attribute.Key]attribute.Value, keys ...attribute.Key) attribute.Value {
	for _, key := range keys {
		if v, ok := attrs[key]; ok {
			return v
		}
	}
	return attribute.Value{}
}

func attributeMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

// matches reports whether the rule applies to a span with the given attributes running on res.
func (r SamplingRule) matches(attrs []attribute.KeyValue, res *resource.Resource) bool {
	m := attributeMap(attrs)
	props := newSpanProperties(m, res)

	return attributeMatch(m, r.Attributes) &&
		wildcardMatch(r.Host, props.httpHost) &&
		wildcardMatch(r.HTTPMethod, props.httpMethod) &&
		wildcardMatch(r.ServiceName, props.serviceName) &&
		wildcardMatch(r.URLPath, props.httpTarget) &&
		wildcardMatch(r.ServiceType, props.serviceType) &&
		wildcardMatch(r.ResourceARN, props.resourceARN)
}
