package store

import "fmt"

const (
	keyDoc = "doc:%s:%s" // doc:<collection>:<id>, a hash of field -> raw JSON
	keyIDs = "docs:%s"   // docs:<collection>, id list in insertion order
)

func docKey(collection, id string) string {
	return fmt.Sprintf(keyDoc, collection, id)
}

func idsKey(collection string) string {
	return fmt.Sprintf(keyIDs, collection)
}
