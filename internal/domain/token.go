package domain

// TokenRecord is registry metadata for a created token, keyed by its
// on-chain address. Corresponds to the coins collection of the original
// dashboard backend.
type TokenRecord struct {
	Address     string // on-chain token address, unique
	Name        string
	Symbol      string
	Decimals    int
	Supply      string // raw supply as decimal string, avoids float truncation
	ImageURL    string // optional, set after image upload
	Creator     string // wallet address that created the token
	CreatedAtMs int64
}
