package model

import "encoding/json"

// EntityType is the kind of content an entity describes.
type EntityType string

const (
	EntityTypeScene    EntityType = "scene"
	EntityTypeProfile  EntityType = "profile"
	EntityTypeWearable EntityType = "wearable"
	EntityTypeStore    EntityType = "store"
	EntityTypeEmote    EntityType = "emote"
	EntityTypeOutfits  EntityType = "outfits"
)

// EntityTypes lists every type known to this client, in a stable order.
var EntityTypes = []EntityType{
	EntityTypeScene,
	EntityTypeProfile,
	EntityTypeWearable,
	EntityTypeStore,
	EntityTypeEmote,
	EntityTypeOutfits,
}

// Valid reports whether t is one of EntityTypes.
func (t EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ContentMapping references one file of an entity by name and hash.
type ContentMapping struct {
	File string `json:"file"`
	Hash string `json:"hash"`
}

// Entity is an immutable, content-addressed record. ID is always derived from
// the canonical manifest bytes, never chosen by the caller.
type Entity struct {
	Version   string           `json:"version,omitempty"`
	ID        string           `json:"id"`
	Type      EntityType       `json:"type"`
	Pointers  []string         `json:"pointers"`
	Timestamp int64            `json:"timestamp"`
	Content   []ContentMapping `json:"content,omitempty"`
	Metadata  json.RawMessage  `json:"metadata,omitempty"`
}

// ContentHash returns the hash of the named file, or "" if the entity does not
// reference it.
func (e Entity) ContentHash(file string) string {
	for _, c := range e.Content {
		if c.File == file {
			return c.Hash
		}
	}
	return ""
}

// AuthLinkType names the role of a link in an auth chain.
type AuthLinkType string

const (
	AuthLinkSigner                 AuthLinkType = "SIGNER"
	AuthLinkEphemeral              AuthLinkType = "ECDSA_EPHEMERAL"
	AuthLinkSignedEntity           AuthLinkType = "ECDSA_SIGNED_ENTITY"
	AuthLinkEIP1654Ephemeral       AuthLinkType = "ECDSA_EIP_1654_EPHEMERAL"
	AuthLinkEIP1654SignedEntity    AuthLinkType = "ECDSA_EIP_1654_SIGNED_ENTITY"
	AuthLinkEd25519SignedEntity    AuthLinkType = "ED25519_SIGNED_ENTITY"
	AuthLinkDilithium3SignedEntity AuthLinkType = "DILITHIUM3_SIGNED_ENTITY"
)

// AuthLink is one signature or ownership proof. The client never interprets
// links; servers validate them.
type AuthLink struct {
	Type      AuthLinkType `json:"type"`
	Payload   string       `json:"payload"`
	Signature string       `json:"signature,omitempty"`
}

// AuthChain is an ordered list of links proving the deployer may claim the
// entity's pointers.
type AuthChain []AuthLink

// AuditInfo is the server-side bookkeeping attached to a deployment.
type AuditInfo struct {
	Version        string    `json:"version,omitempty"`
	AuthChain      AuthChain `json:"authChain,omitempty"`
	LocalTimestamp int64     `json:"localTimestamp"`
	OverwrittenBy  string    `json:"overwrittenBy,omitempty"`
}

// DeploymentContent is a content entry as reported by the deployments listing.
type DeploymentContent struct {
	Key  string `json:"key"`
	Hash string `json:"hash"`
}

// Deployment is one record of the deployment history.
type Deployment struct {
	EntityVersion   string              `json:"entityVersion,omitempty"`
	EntityType      EntityType          `json:"entityType"`
	EntityID        string              `json:"entityId"`
	EntityTimestamp int64               `json:"entityTimestamp"`
	DeployedBy      string              `json:"deployedBy,omitempty"`
	Pointers        []string            `json:"pointers,omitempty"`
	Content         []DeploymentContent `json:"content,omitempty"`
	Metadata        json.RawMessage     `json:"metadata,omitempty"`
	AuditInfo       *AuditInfo          `json:"auditInfo,omitempty"`
}

// LocalTimestamp returns the server-local deployment time, or 0 when the
// audit info was not requested.
func (d Deployment) LocalTimestamp() int64 {
	if d.AuditInfo == nil {
		return 0
	}
	return d.AuditInfo.LocalTimestamp
}

// Pagination is the cursor block of a paginated listing. Next, when set, is
// the query string of the following page and takes precedence over offset
// arithmetic.
type Pagination struct {
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
	MoreData bool   `json:"moreData"`
	Next     string `json:"next,omitempty"`
}

// DeploymentHistory is one page of the deployments listing.
type DeploymentHistory struct {
	Deployments []Deployment `json:"deployments"`
	Pagination  Pagination   `json:"pagination"`
}

// AvailableContent is a server's answer to "do you already store this cid".
type AvailableContent struct {
	CID       string `json:"cid"`
	Available bool   `json:"available"`
}

// DeployResponse is returned by the server after accepting a deployment.
type DeployResponse struct {
	CreationTimestamp int64 `json:"creationTimestamp"`
}

// ServerInfo is one entry of a catalyst's list of approved servers.
type ServerInfo struct {
	Address string `json:"address"`
	Owner   string `json:"owner,omitempty"`
	ID      string `json:"id,omitempty"`
}
