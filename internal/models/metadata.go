package models

// TokenMetadata is the ERC-721 metadata JSON pinned to the content store
// and referenced by the on-chain token URI. Image is an ipfs://CID
// reference to the separately pinned asset.
type TokenMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []MetadataAttribute `json:"attributes"`
}

// MetadataAttribute is a single trait on the metadata object.
type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}
