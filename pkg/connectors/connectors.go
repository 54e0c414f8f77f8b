// Package connectors provides settings node types for database connections.
// Each type is a variant of one discriminated field, selected by DIALECT,
// and reads environment variables prefixed with its own mode segment
// (POSTGRES_HOST, MYSQL_PORT, ...).
//
// A connector either takes DATABASE_URL as given, filling the individual
// fields from it, or builds it from the fields.
package connectors

import (
	"github.com/ajitpratap0/layerconf/pkg/inherit"
	"github.com/ajitpratap0/layerconf/pkg/schema"
)

// Dialects, the discriminator values of the variants.
const (
	DialectPostgres  = "postgresql"
	DialectMySQL     = "mysql"
	DialectMongo     = "mongodb"
	DialectSnowflake = "snowflake"
	DialectSQLite    = "sqlite"
)

// Discriminator is the field selecting the variant
const Discriminator = "DIALECT"

// Database is the lexical base of every connector. Its mode segment nests
// the connectors' own segments under "db".
var Database = schema.MustDefine(&schema.NodeType{
	Name: "Database",
	Config: inherit.Declaration{
		inherit.KeyModeDir:                  "db",
		inherit.KeyEnvConfigInheritParent:   false,
		inherit.KeyEnvPrefixAsSourceModeDir: true,
	},
})

var (
	// PostgresType resolves to *Postgres
	PostgresType = schema.MustDefine(&schema.NodeType{
		Name:   "PostgreSQL",
		Base:   Database,
		Config: inherit.Declaration{inherit.KeyModeDir: "postgres"},
		Fields: serverFields(DialectPostgres, 5432),
		New:    func() interface{} { return &Postgres{} },
	})

	// MySQLType resolves to *MySQL
	MySQLType = schema.MustDefine(&schema.NodeType{
		Name:   "MySQL",
		Base:   Database,
		Config: inherit.Declaration{inherit.KeyModeDir: "mysql"},
		Fields: serverFields(DialectMySQL, 3306),
		New:    func() interface{} { return &MySQL{} },
	})

	// MongoType resolves to *Mongo
	MongoType = schema.MustDefine(&schema.NodeType{
		Name:   "MongoDB",
		Base:   Database,
		Config: inherit.Declaration{inherit.KeyModeDir: "mongodb"},
		Fields: serverFields(DialectMongo, 27017),
		New:    func() interface{} { return &Mongo{} },
	})

	// SnowflakeType resolves to *Snowflake
	SnowflakeType = schema.MustDefine(&schema.NodeType{
		Name:   "Snowflake",
		Base:   Database,
		Config: inherit.Declaration{inherit.KeyModeDir: "snowflake"},
		Fields: append([]schema.Field{
			dialectField(DialectSnowflake),
			{Name: "ACCOUNT", Type: schema.TypeString},
			{Name: "USER", Type: schema.TypeString},
			{Name: "PASSWORD", Type: schema.TypeString},
			{Name: "DATABASE", Type: schema.TypeString},
			{Name: "SCHEMA", Type: schema.TypeString},
			{Name: "WAREHOUSE", Type: schema.TypeString},
			{Name: "ROLE", Type: schema.TypeString},
		}, urlField()),
		New: func() interface{} { return &Snowflake{} },
	})

	// SQLiteType resolves to *SQLite
	SQLiteType = schema.MustDefine(&schema.NodeType{
		Name:   "SQLite",
		Base:   Database,
		Config: inherit.Declaration{inherit.KeyModeDir: "sqlite"},
		Fields: []schema.Field{
			dialectField(DialectSQLite),
			{Name: "DATABASE", Type: schema.TypeString, Default: MemoryDatabase},
			urlField(),
		},
		New: func() interface{} { return &SQLite{} },
	})
)

// Variants lists every connector type in selection order
func Variants() []*schema.NodeType {
	return []*schema.NodeType{PostgresType, MySQLType, MongoType, SnowflakeType, SQLiteType}
}

// Field returns a field holding any connector. dialect selects the variant
// used when no DIALECT value is found in the sources; empty means the field
// is left unset in that case.
func Field(name, dialect string) schema.Field {
	return schema.Field{
		Name:           name,
		Kind:           schema.KindVariants,
		Variants:       Variants(),
		Discriminator:  Discriminator,
		DefaultVariant: dialect,
	}
}

func dialectField(dialect string) schema.Field {
	return schema.Field{
		Name:     Discriminator,
		Type:     schema.TypeString,
		Literals: []string{dialect},
		Default:  dialect,
	}
}

func urlField() schema.Field {
	return schema.Field{Name: "DATABASE_URL", Type: schema.TypeString}
}

func serverFields(dialect string, port int) []schema.Field {
	return []schema.Field{
		dialectField(dialect),
		{Name: "HOST", Type: schema.TypeString, Default: "localhost"},
		{Name: "PORT", Type: schema.TypeInt, Default: port},
		{Name: "USER", Type: schema.TypeString},
		{Name: "PASSWORD", Type: schema.TypeString},
		{Name: "DATABASE", Type: schema.TypeString},
		urlField(),
	}
}

// Register adds Database and every connector type to reg so schema files can
// reference them by name.
func Register(reg *schema.Registry) error {
	for _, nt := range append([]*schema.NodeType{Database}, Variants()...) {
		if err := reg.Register(nt); err != nil {
			return err
		}
	}
	return nil
}
