package internal

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/donetkit/contrib-xray/utils/com_http"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

type xrayClient struct {
	// HTTP client for sending sampling requests to the collector.
	httpClient com_http.HTTPClient

	// Resolved URL to call getSamplingRules API.
	samplingRulesURL string

	// Resolved URL to call getSamplingTargets API.
	samplingTargetsURL string
}

// ruleProperties is the base set of properties that define a sampling rule.
type ruleProperties struct {
	RuleName      string            `json:"RuleName"`
	RuleARN       string            `json:"RuleARN"`
	ServiceType   string            `json:"ServiceType"`
	ResourceARN   string            `json:"ResourceARN"`
	Attributes    map[string]string `json:"Attributes"`
	ServiceName   string            `json:"ServiceName"`
	Host          string            `json:"Host"`
	HTTPMethod    string            `json:"HTTPMethod"`
	URLPath       string            `json:"URLPath"`
	ReservoirSize float64           `json:"ReservoirSize"`
	FixedRate     float64           `json:"FixedRate"`
	Priority      int64             `json:"Priority"`
	Version       int64             `json:"Version"`
}

type samplingRuleRecord struct {
	CreatedAt    float64         `json:"CreatedAt"`
	ModifiedAt   float64         `json:"ModifiedAt"`
	SamplingRule *ruleProperties `json:"SamplingRule"`
}

// getSamplingRulesOutput is used to store parsed json sampling rules.
type getSamplingRulesOutput struct {
	NextToken           *string               `json:"NextToken"`
	SamplingRuleRecords []*samplingRuleRecord `json:"SamplingRuleRecords"`
}

// SamplingStatisticsDocument reports the counters of one rule for the last interval.
type SamplingStatisticsDocument struct {
	ClientID     string `json:"ClientID"`
	RuleName     string `json:"RuleName"`
	Timestamp    int64  `json:"Timestamp"`
	RequestCount int64  `json:"RequestCount"`
	BorrowCount  int64  `json:"BorrowCount"`
	SampledCount int64  `json:"SampledCount"`
}

type getSamplingTargetsInput struct {
	SamplingStatisticsDocuments []*SamplingStatisticsDocument `json:"SamplingStatisticsDocuments"`
}

// SamplingTargetDocument is a target issued by X-Ray for one rule. Nil fields are absent from
// the response and leave the corresponding parameter of the rule untouched.
type SamplingTargetDocument struct {
	RuleName string `json:"RuleName"`

	// FixedRate is the percentage of matching requests to instrument after the reservoir is exhausted.
	FixedRate *float64 `json:"FixedRate"`

	// Interval is the number of seconds to wait before reporting statistics again.
	Interval *int64 `json:"Interval"`

	// ReservoirQuota is the number of requests per second the reservoir may admit.
	ReservoirQuota *float64 `json:"ReservoirQuota"`

	// ReservoirQuotaTTL is the epoch second at which the reservoir quota expires.
	ReservoirQuotaTTL *float64 `json:"ReservoirQuotaTTL"`
}

type unprocessedStatistic struct {
	ErrorCode *string `json:"ErrorCode"`
	Message   *string `json:"Message"`
	RuleName  *string `json:"RuleName"`
}

// getSamplingTargetsOutput is used to store parsed json sampling targets.
type getSamplingTargetsOutput struct {
	LastRuleModification    *float64                  `json:"LastRuleModification"`
	SamplingTargetDocuments []*SamplingTargetDocument `json:"SamplingTargetDocuments"`
	UnprocessedStatistics   []*unprocessedStatistic   `json:"UnprocessedStatistics"`
}

// newClient returns an xrayClient addressing the getSamplingRules and getSamplingTargets
// APIs of the proxy at endpoint.
func newClient(endpoint url.URL, httpClient com_http.HTTPClient) (*xrayClient, error) {
	if endpoint.Host == "" {
		return nil, errors.Errorf("xray client: invalid endpoint %q: missing host", endpoint.String())
	}
	if httpClient == nil {
		httpClient = com_http.DefaultHTTPClient()
	}

	samplingRulesURL := endpoint
	samplingTargetsURL := endpoint

	basePath := strings.TrimSuffix(endpoint.Path, "/")
	samplingRulesURL.Path = basePath + "/GetSamplingRules"
	samplingTargetsURL.Path = basePath + "/SamplingTargets"

	return &xrayClient{
		httpClient:         httpClient,
		samplingRulesURL:   samplingRulesURL.String(),
		samplingTargetsURL: samplingTargetsURL.String(),
	}, nil
}

// getSamplingRules calls the collector(aws proxy enabled) for sampling rules.
func (c *xrayClient) getSamplingRules(ctx context.Context) (*getSamplingRulesOutput, error) {
	var samplingRulesOutput getSamplingRulesOutput
	if err := c.post(ctx, c.samplingRulesURL, []byte("{}"), &samplingRulesOutput); err != nil {
		return nil, err
	}
	return &samplingRulesOutput, nil
}

// getSamplingTargets calls the collector(aws proxy enabled) for sampling targets.
func (c *xrayClient) getSamplingTargets(ctx context.Context, s []*SamplingStatisticsDocument) (*getSamplingTargetsOutput, error) {
	statistics := getSamplingTargetsInput{
		SamplingStatisticsDocuments: s,
	}

	statisticsByte, err := json.Marshal(statistics)
	if err != nil {
		return nil, errors.Wrap(err, "xray client: unable to marshal sampling statistics")
	}

	var samplingTargetsOutput getSamplingTargetsOutput
	if err := c.post(ctx, c.samplingTargetsURL, statisticsByte, &samplingTargetsOutput); err != nil {
		return nil, err
	}
	return &samplingTargetsOutput, nil
}

func (c *xrayClient) post(ctx context.Context, reqURL string, body []byte, out interface{}) error {
	resp, err := c.httpClient.Do(ctx, http.MethodPost, reqURL, body, com_http.WithHeader("Content-Type", "application/json"))
	if err != nil {
		return errors.Wrapf(err, "xray client: unable to POST %s", reqURL)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "xray client: unable to read response from %s", reqURL)
	}

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("xray client: %s returned status %d: %s", reqURL, resp.StatusCode, string(data))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.Errorf("xray client: %s returned an empty body", reqURL)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "xray client: unable to unmarshal response from %s", reqURL)
	}
	return nil
}
