package ojs

import "github.com/openjobspec/ojs-go/id"

// ID is the identifier type for OJS entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
