package core

// Operation represents an API action resolved by the dispatcher, one of
// List, Get, Create, Update, Custom, Login, Logout
type Operation string

// all supported API operations
const (
	OperationList   Operation = "list"
	OperationGet    Operation = "get"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationCustom Operation = "custom"
	OperationLogin  Operation = "login"
	OperationLogout Operation = "logout"
)

// RelationKind tells the serializer how to resolve and render a relation.
type RelationKind string

// all supported relation kinds
const (
	// RelationForeignKey is a to-one edge stored on this entity
	RelationForeignKey RelationKind = "foreign-key"
	// RelationOneToOne is a to-one edge with a unique target
	RelationOneToOne RelationKind = "one-to-one"
	// RelationReverse is the to-many reverse side of a foreign key
	RelationReverse RelationKind = "reverse"
	// RelationManyToMany is a symmetric to-many edge
	RelationManyToMany RelationKind = "many-to-many"
)

// ToMany returns true if the relation resolves to a sequence of instances
// rather than a single one.
func (k RelationKind) ToMany() bool {
	return k == RelationReverse || k == RelationManyToMany
}

// Depth selects between the bounded "short" view and the extended "long"
// view of an entity.
type Depth string

// the two serialization depths
const (
	DepthShort Depth = "short"
	DepthLong  Depth = "long"
)
