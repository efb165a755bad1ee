// Package client is the HTTP client used by the shelfctl command line
// tool. It authenticates with a long-lived API key and mirrors the
// read, search and maintenance operations of the catalog API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"skyshelf/models"
	"skyshelf/services"
)

// Client talks to a catalog server. Host carries the scheme and
// authority, e.g. "http://localhost:8080".
type Client struct {
	Host   string
	APIKey string

	httpClient *http.Client
}

func New(host, apiKey string) *Client {
	return &Client{
		Host:   host,
		APIKey: apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// apiEnvelope is the standard response wrapper used by most endpoints.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// ProductTree is a product's version history as returned by the read
// endpoints.
type ProductTree struct {
	CurrentPresent bool                              `json:"current_present"`
	Current        *string                           `json:"current,omitempty"`
	Requested      string                            `json:"requested"`
	Versions       map[string]models.ProductSnapshot `json:"versions"`
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.Host+"/api"+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope apiEnvelope
		if json.Unmarshal(payload, &envelope) == nil && envelope.Message != "" {
			return fmt.Errorf("%s %s: %s (HTTP %d)", method, path, envelope.Message, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// doEnveloped performs a request and unwraps the standard response
// envelope into out.
func (c *Client) doEnveloped(method, path string, body, out interface{}) error {
	var envelope apiEnvelope
	if err := c.do(method, path, body, &envelope); err != nil {
		return err
	}
	if out == nil || envelope.Data == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

// ReadProduct fetches a single product version.
func (c *Client) ReadProduct(id string) (*ProductTree, error) {
	var tree ProductTree
	if err := c.do(http.MethodGet, "/product/"+id, nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// ReadProductTree fetches a product's whole version history.
func (c *Client) ReadProductTree(id string) (*ProductTree, error) {
	var tree ProductTree
	if err := c.do(http.MethodGet, "/product/"+id+"/tree", nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// ReadProductFiles fetches the source files of a product version, with
// pre-signed download URLs for those already uploaded.
func (c *Client) ReadProductFiles(id string) ([]services.PostUploadFile, error) {
	var files []services.PostUploadFile
	if err := c.doEnveloped(http.MethodGet, "/product/"+id+"/files", nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// SearchProducts searches current products by name or description
// substring.
func (c *Client) SearchProducts(text string) ([]models.ProductSnapshot, error) {
	var products []models.ProductSnapshot
	if err := c.doEnveloped(http.MethodGet, "/products/search/"+text, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// DeleteProduct removes one product version. When data is set the
// version's unshared files are removed from the store as well.
func (c *Client) DeleteProduct(id string, data bool) error {
	path := "/product/" + id
	if data {
		path += "?data=true"
	}
	return c.doEnveloped(http.MethodDelete, path, nil, nil)
}

// DeleteProductTree removes a whole version chain, head first.
func (c *Client) DeleteProductTree(id string, data bool) error {
	path := "/product/" + id + "/tree"
	if data {
		path += "?data=true"
	}
	return c.doEnveloped(http.MethodDelete, path, nil, nil)
}

// SetVisibility changes a product's visibility in place, without
// creating a new version.
func (c *Client) SetVisibility(id string, visibility models.Visibility) error {
	body := map[string]interface{}{
		"visibility": visibility,
		"level":      "visibility",
	}
	return c.do(http.MethodPost, "/product/"+id+"/update", body, nil)
}

// ReadCollection fetches a collection with its visible members.
func (c *Client) ReadCollection(id string) (*models.CollectionSnapshot, error) {
	var collection models.CollectionSnapshot
	if err := c.doEnveloped(http.MethodGet, "/collection/"+id, nil, &collection); err != nil {
		return nil, err
	}
	return &collection, nil
}

// SearchCollections searches collections by name or description
// substring.
func (c *Client) SearchCollections(text string) ([]models.Collection, error) {
	var collections []models.Collection
	if err := c.doEnveloped(http.MethodGet, "/collections/search/"+text, nil, &collections); err != nil {
		return nil, err
	}
	return collections, nil
}
