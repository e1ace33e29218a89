package model

// DataType is the declared type a condition coerces both sides to before comparing.
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeDate    DataType = "date"
	DataTypeArray   DataType = "array"
)

// DataTypes lists every supported data type.
var DataTypes = []DataType{DataTypeString, DataTypeNumber, DataTypeBoolean, DataTypeDate, DataTypeArray}

// IsValid reports whether d is a known data type.
func (d DataType) IsValid() bool {
	for _, known := range DataTypes {
		if d == known {
			return true
		}
	}
	return false
}

// Operator is a comparison operator used in conditions.
type Operator string

const (
	OperatorEquals             Operator = "equals"
	OperatorNotEquals          Operator = "not_equals"
	OperatorGreaterThan        Operator = "greater_than"
	OperatorGreaterThanOrEqual Operator = "greater_than_or_equal"
	OperatorLessThan           Operator = "less_than"
	OperatorLessThanOrEqual    Operator = "less_than_or_equal"
	OperatorContains           Operator = "contains"
	OperatorNotContains        Operator = "not_contains"
	OperatorIn                 Operator = "in"
	OperatorNotIn              Operator = "not_in"
	OperatorBetween            Operator = "between"
	OperatorIsNull             Operator = "is_null"
	OperatorIsNotNull          Operator = "is_not_null"
)

// Operators lists every supported operator.
var Operators = []Operator{
	OperatorEquals, OperatorNotEquals,
	OperatorGreaterThan, OperatorGreaterThanOrEqual,
	OperatorLessThan, OperatorLessThanOrEqual,
	OperatorContains, OperatorNotContains,
	OperatorIn, OperatorNotIn, OperatorBetween,
	OperatorIsNull, OperatorIsNotNull,
}

// IsValid reports whether o is a known operator.
func (o Operator) IsValid() bool {
	for _, known := range Operators {
		if o == known {
			return true
		}
	}
	return false
}

// IsNullCheck reports whether the operator ignores the comparison value.
func (o Operator) IsNullCheck() bool {
	return o == OperatorIsNull || o == OperatorIsNotNull
}

// RequiresList reports whether the comparison value must be a list.
func (o Operator) RequiresList() bool {
	return o == OperatorIn || o == OperatorNotIn || o == OperatorBetween
}

// IsOrdering reports whether the operator compares by order.
func (o Operator) IsOrdering() bool {
	switch o {
	case OperatorGreaterThan, OperatorGreaterThanOrEqual, OperatorLessThan, OperatorLessThanOrEqual, OperatorBetween:
		return true
	}
	return false
}

// LogicalOperator combines the conditions of a rule.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// IsValid reports whether l is AND or OR.
func (l LogicalOperator) IsValid() bool {
	return l == LogicalAnd || l == LogicalOr
}
