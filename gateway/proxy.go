package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tallerops/admin-console/shared/middleware"
	"github.com/tallerops/admin-console/shared/utils"
)

// identityHeaders are set by the gateway only; client values are dropped
var identityHeaders = []string{"X-User-ID", "X-User-Email", "X-Tenant-ID", "X-User-Role"}

// ServiceClient handles HTTP communication with a backend service
type ServiceClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewServiceClient creates a new service client
func NewServiceClient(name, baseURL string) *ServiceClient {
	return &ServiceClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ProxyRequest forwards the request to the service and copies the answer back
func (sc *ServiceClient) ProxyRequest(c *gin.Context) {
	targetURL := sc.baseURL + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	var body io.Reader
	if c.Request.Body != nil {
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to read request body")
			return
		}
		body = bytes.NewBuffer(bodyBytes)
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, body)
	if err != nil {
		utils.InternalServerErrorResponse(c, "Failed to create request")
		return
	}

	for key, values := range c.Request.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	for _, h := range identityHeaders {
		req.Header.Del(h)
	}
	req.Header.Set("X-Request-ID", c.GetString("request_id"))
	req.Header.Set("X-Forwarded-For", c.ClientIP())

	if p := middleware.PrincipalFromContext(c); p != nil {
		req.Header.Set("X-User-ID", p.ID.String())
		req.Header.Set("X-User-Email", p.Email)
		req.Header.Set("X-User-Role", string(p.Role))
		if p.TenantID != nil {
			req.Header.Set("X-Tenant-ID", p.TenantID.String())
		}
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"service": sc.name,
			"error":   err,
		}).Error("Upstream request failed")
		utils.ErrorResponse(c, http.StatusBadGateway, "Failed to communicate with service")
		return
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadGateway, "Failed to read response")
		return
	}

	for key, values := range resp.Header {
		for _, value := range values {
			c.Header(key, value)
		}
	}

	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), responseBody)
}

// HealthCheck checks if a service is healthy
func (sc *ServiceClient) HealthCheck() error {
	req, err := http.NewRequest(http.MethodGet, sc.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}

	return nil
}

// ServiceClients holds all service clients
type ServiceClients struct {
	Auth       *ServiceClient
	Tenant     *ServiceClient
	Payments   *ServiceClient
	Operations *ServiceClient
	Audit      *ServiceClient
}

func (scs *ServiceClients) all() []*ServiceClient {
	return []*ServiceClient{scs.Auth, scs.Tenant, scs.Payments, scs.Operations, scs.Audit}
}

// GetServiceStatus returns the health of every backend service
func (scs *ServiceClients) GetServiceStatus() map[string]interface{} {
	status := make(map[string]interface{})
	for _, sc := range scs.all() {
		if err := sc.HealthCheck(); err != nil {
			status[sc.name] = map[string]interface{}{
				"healthy": false,
				"error":   err.Error(),
			}
			continue
		}
		status[sc.name] = map[string]interface{}{
			"healthy": true,
		}
	}
	return status
}
