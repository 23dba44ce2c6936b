package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/Gobusters/ectologger"

	"github.com/komgo/credit-lines/pkg/errors"
	"github.com/komgo/credit-lines/pkg/httpclient"
	"github.com/komgo/credit-lines/pkg/tracing"
)

const serviceName = "api-registry"

// Company is the registry's view of a member company. The display name lives
// in a nested x500Name block on the wire and is flattened on decode.
type Company struct {
	StaticID               string `json:"staticId"`
	CommonName             string `json:"-"`
	IsFinancialInstitution bool   `json:"isFinancialInstitution"`
	HasSWIFTKey            bool   `json:"hasSWIFTKey"`
	IsMember               bool   `json:"isMember"`
}

// UnmarshalJSON flattens the registry wire format, lifting x500Name.CN into
// CommonName.
func (c *Company) UnmarshalJSON(data []byte) error {
	var wire struct {
		StaticID string `json:"staticId"`
		X500Name struct {
			CN string `json:"CN"`
		} `json:"x500Name"`
		IsFinancialInstitution bool `json:"isFinancialInstitution"`
		HasSWIFTKey            bool `json:"hasSWIFTKey"`
		IsMember               bool `json:"isMember"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	c.StaticID = wire.StaticID
	c.CommonName = wire.X500Name.CN
	c.IsFinancialInstitution = wire.IsFinancialInstitution
	c.HasSWIFTKey = wire.HasSWIFTKey
	c.IsMember = wire.IsMember
	return nil
}

// Client looks up counterparty and company reference data from the registry
// service. Failures after retries surface as MicroserviceClientError.
type Client struct {
	http    *httpclient.Client
	baseURL string
	logger  ectologger.Logger
}

func NewClient(http *httpclient.Client, baseURL string, logger ectologger.Logger) *Client {
	return &Client{http: http, baseURL: baseURL, logger: logger}
}

// GetCompanyByStaticID fetches a single company. Returns nil when the
// registry has no record for the id.
func (c *Client) GetCompanyByStaticID(ctx context.Context, staticID string) (*Company, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.GetCompanyByStaticID")
	defer span.End()

	query := url.Values{}
	query.Set("companyData", fmt.Sprintf(`{"staticId":%q}`, staticID))

	var companies []Company
	err := c.http.GetJSON(ctx, c.baseURL+"/v0/registry/cache?"+query.Encode(), &companies)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": staticID,
		}).Error("failed to fetch company from registry")
		return nil, errors.NewMicroserviceClientError(serviceName, "failed to fetch company", err)
	}
	if len(companies) == 0 {
		return nil, nil
	}

	return &companies[0], nil
}

// GetCompanies fetches the companies for the given static ids, preserving
// only those the registry knows about.
func (c *Client) GetCompanies(ctx context.Context, staticIDs []string) ([]Company, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.GetCompanies")
	defer span.End()

	companies := make([]Company, 0, len(staticIDs))
	for _, staticID := range staticIDs {
		company, err := c.GetCompanyByStaticID(ctx, staticID)
		if err != nil {
			return nil, err
		}
		if company != nil {
			companies = append(companies, *company)
		}
	}

	return companies, nil
}

// GetCounterparties fetches the connected counterparties of this company
func (c *Client) GetCounterparties(ctx context.Context) ([]Company, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.GetCounterparties")
	defer span.End()

	var companies []Company
	err := c.http.GetJSON(ctx, c.baseURL+"/v0/counterparties?query=%7B%7D", &companies)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("failed to fetch counterparties from registry")
		return nil, errors.NewMicroserviceClientError(serviceName, "failed to fetch counterparties", err)
	}

	return companies, nil
}
