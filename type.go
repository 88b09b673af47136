package griddb

import (
	"fmt"

	"github.com/andreyvit/griddb/engine"
)

// Type is a column type. The numeric values match the engine type codes.
type Type int32

const (
	TypeString    = Type(engine.TypeString)
	TypeBool      = Type(engine.TypeBool)
	TypeByte      = Type(engine.TypeByte)
	TypeShort     = Type(engine.TypeShort)
	TypeInteger   = Type(engine.TypeInteger)
	TypeLong      = Type(engine.TypeLong)
	TypeFloat     = Type(engine.TypeFloat)
	TypeDouble    = Type(engine.TypeDouble)
	TypeTimestamp = Type(engine.TypeTimestamp)
	TypeGeometry  = Type(engine.TypeGeometry)
	TypeBlob      = Type(engine.TypeBlob)
)

func (t Type) Valid() bool {
	return engine.TypeCode(t).Valid()
}

func (t Type) String() string {
	return engine.TypeCode(t).String()
}

func (t Type) code() engine.TypeCode {
	return engine.TypeCode(t)
}

func typeFromCode(tc engine.TypeCode) (Type, error) {
	if !tc.Valid() {
		return 0, errf(KindEngine, nil, "unknown column type code %d", int32(tc))
	}
	return Type(tc), nil
}

// ContainerKind distinguishes general collections from time series.
type ContainerKind int32

const (
	Collection = ContainerKind(engine.Collection)
	TimeSeries = ContainerKind(engine.TimeSeries)
)

func (k ContainerKind) String() string {
	return engine.ContainerKind(k).String()
}

func containerKindFromCode(k engine.ContainerKind) (ContainerKind, error) {
	switch k {
	case engine.Collection, engine.TimeSeries:
		return ContainerKind(k), nil
	default:
		return 0, errf(KindEngine, nil, "unknown container kind %d", int32(k))
	}
}

type IndexKind int32

const (
	IndexDefault = IndexKind(engine.IndexDefault)
	IndexTree    = IndexKind(engine.IndexTree)
	IndexSpatial = IndexKind(engine.IndexSpatial)
)

func (k IndexKind) String() string {
	return engine.IndexKind(k).String()
}

// TypeOption is the nullability of a column.
type TypeOption int32

const (
	Nullable = TypeOption(engine.Nullable)
	NotNull  = TypeOption(engine.NotNull)
)

func (o TypeOption) String() string {
	switch o {
	case Nullable:
		return "NULLABLE"
	case NotNull:
		return "NOT NULL"
	default:
		return fmt.Sprintf("TYPE_OPTION(%d)", int32(o))
	}
}

// RowSetType is fixed when a RowSet is created.
type RowSetType int32

const (
	ContainerRows     = RowSetType(engine.RowSetContainerRows)
	AggregationRows   = RowSetType(engine.RowSetAggregationResult)
	QueryAnalysisRows = RowSetType(engine.RowSetQueryAnalysis)
)

func (t RowSetType) String() string {
	return engine.RowSetKind(t).String()
}

func rowSetTypeFromKind(k engine.RowSetKind) (RowSetType, error) {
	switch k {
	case engine.RowSetContainerRows, engine.RowSetAggregationResult, engine.RowSetQueryAnalysis:
		return RowSetType(k), nil
	default:
		return 0, errf(KindEngine, nil, "unknown row set kind %d", int32(k))
	}
}

// TimeUnit is a unit of Timestamp.Add. Its String form is the unit keyword of
// TQL time functions such as TIMESTAMPADD.
type TimeUnit int32

const (
	Year TimeUnit = iota
	Month
	Day
	Hour
	Minute
	Second
	Millisecond
)

func (u TimeUnit) String() string {
	switch u {
	case Year:
		return "YEAR"
	case Month:
		return "MONTH"
	case Day:
		return "DAY"
	case Hour:
		return "HOUR"
	case Minute:
		return "MINUTE"
	case Second:
		return "SECOND"
	case Millisecond:
		return "MILLISECOND"
	default:
		return fmt.Sprintf("TIME_UNIT(%d)", int32(u))
	}
}
