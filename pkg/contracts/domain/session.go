package domain

import "fmt"

// Column names shared by the flattened session files and every table derived from them
const (
	ColumnVisitorID       = "fullVisitorId"
	ColumnDate            = "date"
	ColumnMonthBucket     = "date_temp"
	ColumnOperatingSystem = "operatingSystem"
	ColumnCountry         = "country"
	ColumnBrowser         = "browser"
	ColumnPageviews       = "pageviews"
	ColumnTransactions    = "transactions"
	ColumnVisits          = "visits"
	ColumnRevenue         = "transactionRevenue"
	ColumnVisitStartTime  = "visitStartTime"
	ColumnWeekday         = "weekday"
	ColumnTarget          = "target"
)

// Columns the customer summary reads or derives per session
const (
	ColumnVisitHour      = "visitHour"
	ColumnSource         = "source"
	ColumnSourceCategory = "source_cat"
	ColumnKeyword        = "keyword"
	ColumnTotalVisits    = "totalVisits"
	ColumnHits           = "hits"
)

// OtherCategory replaces categorical values that fall outside the kept set
const OtherCategory = "other category"

// FieldType describes how a flattened field is typed when loaded
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
)

// Field is one column of the flattened session file
type Field struct {
	Name    string    `json:"name" yaml:"name" validate:"required"`
	Type    FieldType `json:"type" yaml:"type" validate:"required,oneof=text number date"`
	Default string    `json:"default" yaml:"default"`
}

// Schema is an ordered list of fields
type Schema []Field

// Names returns the field names in order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the field with the given name
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SessionSchema is the fixed column set written by the flatten stage. A
// field that a whole batch lacks is filled with its default.
var SessionSchema = Schema{
	{Name: ColumnDate, Type: FieldDate, Default: "0"},
	{Name: ColumnVisitorID, Type: FieldText, Default: "0"},
	{Name: ColumnOperatingSystem, Type: FieldText, Default: "0"},
	{Name: ColumnCountry, Type: FieldText, Default: "0"},
	{Name: ColumnBrowser, Type: FieldText, Default: "0"},
	{Name: ColumnPageviews, Type: FieldNumber, Default: "0"},
	{Name: ColumnTransactions, Type: FieldNumber, Default: "0"},
	{Name: ColumnVisits, Type: FieldNumber, Default: "0"},
	{Name: ColumnRevenue, Type: FieldNumber, Default: "0"},
	{Name: ColumnVisitStartTime, Type: FieldNumber, Default: "0"},
}

// CustomerSchema extends SessionSchema with the device, geo, traffic and
// totals fields the customer summary reads. The extra fields default to
// missing rather than 0 so that counts skip them.
var CustomerSchema = append(append(Schema{}, SessionSchema...), Schema{
	{Name: "channelGrouping", Type: FieldText},
	{Name: "deviceCategory", Type: FieldText},
	{Name: "isMobile", Type: FieldText},
	{Name: "city", Type: FieldText},
	{Name: "continent", Type: FieldText},
	{Name: "metro", Type: FieldText},
	{Name: "region", Type: FieldText},
	{Name: "subContinent", Type: FieldText},
	{Name: "networkDomain", Type: FieldText},
	{Name: "adContent", Type: FieldText},
	{Name: "adwordsClickInfo.adNetworkType", Type: FieldText},
	{Name: "adwordsClickInfo.page", Type: FieldText},
	{Name: "adwordsClickInfo.slot", Type: FieldText},
	{Name: "adwordsClickInfo.isVideoAd", Type: FieldText},
	{Name: "campaign", Type: FieldText},
	{Name: "medium", Type: FieldText},
	{Name: ColumnSource, Type: FieldText},
	{Name: "isTrueDirect", Type: FieldText},
	{Name: ColumnKeyword, Type: FieldText},
	{Name: ColumnHits, Type: FieldNumber},
	{Name: "bounces", Type: FieldNumber},
	{Name: "newVisits", Type: FieldNumber},
	{Name: "visitNumber", Type: FieldNumber},
}...)

// Flatten schema names accepted by LookupSchema
const (
	SchemaSessions  = "sessions"
	SchemaCustomers = "customers"
)

// LookupSchema returns the flatten schema registered under name
func LookupSchema(name string) (Schema, error) {
	switch name {
	case SchemaSessions, "":
		return SessionSchema, nil
	case SchemaCustomers:
		return CustomerSchema, nil
	}
	return nil, fmt.Errorf("unknown flatten schema %q", name)
}

// DefaultJSONColumns are the raw columns holding JSON object text
var DefaultJSONColumns = []string{"device", "geoNetwork", "totals", "trafficSource"}
