package models

// Unit is a tracked vehicle/asset. The ID is assigned by Wialon and is never
// generated locally.
type Unit struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
