// Package domain defines the asset entity mirrored from the remote inventory
// service, the bulk-import job descriptor, and the error taxonomy shared by
// every assetmirror component.
package domain

import "time"

// AssetType is the closed enumeration of asset categories.
type AssetType string

const (
	TypeDevice   AssetType = "device"
	TypePerson   AssetType = "person"
	TypeLocation AssetType = "location"
	TypeSoftware AssetType = "software"
)

// KnownType reports whether t is a member of the closed enumeration.
func KnownType(t AssetType) bool {
	switch t {
	case TypeDevice, TypePerson, TypeLocation, TypeSoftware:
		return true
	}
	return false
}

// AssetTypes lists every valid asset type.
func AssetTypes() []AssetType {
	return []AssetType{TypeDevice, TypePerson, TypeLocation, TypeSoftware}
}

// Asset is one cached record mirroring a server-side row. The remote service
// is the lifecycle authority: ID is assigned there and immutable afterwards,
// Identifier is the business identifier and unique among live records.
// Descriptive fields below Type are opaque to indexing.
type Asset struct {
	ID           int64          `json:"id"`
	Identifier   string         `json:"identifier"`
	Type         AssetType      `json:"type"`
	Active       bool           `json:"active"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Location     string         `json:"location,omitempty"`
	AssignedTo   string         `json:"assigned_to,omitempty"`
	PurchaseDate *time.Time     `json:"purchase_date,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CloneAsset returns a deep copy so callers can never alias store state.
func CloneAsset(a Asset) Asset {
	cp := a
	if a.PurchaseDate != nil {
		d := *a.PurchaseDate
		cp.PurchaseDate = &d
	}
	if a.Attributes != nil {
		cp.Attributes = make(map[string]any, len(a.Attributes))
		for k, v := range a.Attributes {
			cp.Attributes[k] = v
		}
	}
	return cp
}

// NewAssetInput is the creation payload sent to the remote service. The
// server assigns the primary ID and may normalize fields, so the input is
// never inserted into the cache directly.
type NewAssetInput struct {
	Identifier   string         `json:"identifier"`
	Type         AssetType      `json:"type"`
	Active       bool           `json:"active"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Location     string         `json:"location,omitempty"`
	AssignedTo   string         `json:"assigned_to,omitempty"`
	PurchaseDate *time.Time     `json:"purchase_date,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// AssetPatch is a partial update. Nil fields are left untouched when the
// patch is merged onto an existing record.
type AssetPatch struct {
	Identifier   *string        `json:"identifier,omitempty"`
	Type         *AssetType     `json:"type,omitempty"`
	Active       *bool          `json:"active,omitempty"`
	Name         *string        `json:"name,omitempty"`
	Description  *string        `json:"description,omitempty"`
	Location     *string        `json:"location,omitempty"`
	AssignedTo   *string        `json:"assigned_to,omitempty"`
	PurchaseDate *time.Time     `json:"purchase_date,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// Apply merges the patch onto a and returns the merged record.
func (p AssetPatch) Apply(a Asset) Asset {
	out := CloneAsset(a)
	if p.Identifier != nil {
		out.Identifier = *p.Identifier
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Active != nil {
		out.Active = *p.Active
	}
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Location != nil {
		out.Location = *p.Location
	}
	if p.AssignedTo != nil {
		out.AssignedTo = *p.AssignedTo
	}
	if p.PurchaseDate != nil {
		d := *p.PurchaseDate
		out.PurchaseDate = &d
	}
	if p.Attributes != nil {
		out.Attributes = make(map[string]any, len(p.Attributes))
		for k, v := range p.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// PatchFromAsset expresses a full server response as a patch, used when the
// façade applies the authoritative update payload onto the cached record.
func PatchFromAsset(a Asset) AssetPatch {
	id := a.Identifier
	typ := a.Type
	active := a.Active
	name := a.Name
	desc := a.Description
	loc := a.Location
	assigned := a.AssignedTo
	p := AssetPatch{
		Identifier:  &id,
		Type:        &typ,
		Active:      &active,
		Name:        &name,
		Description: &desc,
		Location:    &loc,
		AssignedTo:  &assigned,
		Attributes:  a.Attributes,
	}
	if a.PurchaseDate != nil {
		d := *a.PurchaseDate
		p.PurchaseDate = &d
	}
	return p
}
