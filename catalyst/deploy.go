package catalyst

import (
	"context"
	"fmt"

	"github.com/decentraland/catalyst-client-sub000/deployment"
	"github.com/decentraland/catalyst-client-sub000/model"
	"github.com/decentraland/catalyst-client-sub000/transport"
)

// DeployPath is the endpoint deployments are posted to.
const DeployPath = "/content/entities"

// Deploy uploads a signed deployment.
//
// Files the server already stores are skipped; the manifest is always sent.
// The auth chain travels as authChain[i][type|payload|signature] form fields
// and every file part is named by its hash.
func (c *Client) Deploy(ctx context.Context, data deployment.Data) (model.DeployResponse, error) {
	if len(data.AuthChain) == 0 {
		return model.DeployResponse{}, model.NewValidationError("auth chain is empty")
	}
	if data.EntityID == "" || data.Manifest() == nil {
		return model.DeployResponse{}, model.NewValidationError("deployment has no entity manifest")
	}

	available, err := c.available.Resolve(ctx, deployment.Hashes(data.PreparationData))
	if err != nil {
		return model.DeployResponse{}, err
	}
	upload := deployment.FilesToUpload(data.PreparationData, available)
	c.logger.Info("deploying entity",
		"entity", data.EntityID,
		"files", len(data.Files),
		"upload", len(upload),
	)

	fields := deployFields(data)
	files := make([]transport.File, 0, len(upload))
	for _, hash := range deployment.Hashes(deployment.PreparationData{Files: upload}) {
		files = append(files, transport.File{Field: hash, FileName: hash, Content: upload[hash]})
	}

	var resp model.DeployResponse
	if err := c.transport.PostMultipart(ctx, c.baseURL+DeployPath, fields, files, c.options, &resp); err != nil {
		return model.DeployResponse{}, err
	}
	return resp, nil
}

func deployFields(data deployment.Data) []transport.Field {
	fields := []transport.Field{{Name: "entityId", Value: data.EntityID}}
	for i, link := range data.AuthChain {
		prefix := fmt.Sprintf("authChain[%d]", i)
		fields = append(fields,
			transport.Field{Name: prefix + "[type]", Value: string(link.Type)},
			transport.Field{Name: prefix + "[payload]", Value: link.Payload},
		)
		if link.Signature != "" {
			fields = append(fields, transport.Field{Name: prefix + "[signature]", Value: link.Signature})
		}
	}
	return fields
}
