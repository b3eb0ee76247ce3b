package blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	azb "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// AzureBackend talks to an Azure storage account. Each container is reached
// through its own shared access signature.
type AzureBackend struct {
	accountURL string
	clients    map[string]*azblob.Client
}

// NewAzureBackend creates one client per container from sas, which maps a
// container name to its SAS query string.
func NewAzureBackend(accountURL string, sas map[string]string) (*AzureBackend, error) {
	accountURL = strings.TrimRight(accountURL, "/")
	if accountURL == "" {
		return nil, fmt.Errorf("blob: account url required")
	}

	clients := make(map[string]*azblob.Client, len(sas))
	for container, token := range sas {
		if token == "" {
			continue
		}
		client, err := azblob.NewClientWithNoCredential(accountURL+"?"+strings.TrimPrefix(token, "?"), nil)
		if err != nil {
			return nil, fmt.Errorf("blob: client for %s: %w", container, err)
		}
		clients[container] = client
	}

	return &AzureBackend{accountURL: accountURL, clients: clients}, nil
}

func (a *AzureBackend) client(container string) (*azblob.Client, error) {
	c, ok := a.clients[container]
	if !ok {
		return nil, fmt.Errorf("blob: no access token for container %q", container)
	}
	return c, nil
}

func (a *AzureBackend) Upload(ctx context.Context, container, name string, data []byte, contentType string) (string, error) {
	c, err := a.client(container)
	if err != nil {
		return "", err
	}

	opts := &azblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &azb.HTTPHeaders{BlobContentType: &contentType}
	}

	if _, err := c.UploadBuffer(ctx, container, name, data, opts); err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", container, name, err)
	}

	return a.accountURL + "/" + container + "/" + url.PathEscape(name), nil
}

func (a *AzureBackend) Delete(ctx context.Context, container, name string) error {
	c, err := a.client(container)
	if err != nil {
		return err
	}
	if _, err := c.DeleteBlob(ctx, container, name, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", container, name, err)
	}
	return nil
}
