// Package schema defines the tables of the remote election workbook and the
// codecs that convert business entities to and from flat row arrays.
//
// Every table has an ordered, typed column list; row 1 of each table is the
// header and data rows follow. Decoding validates at the I/O boundary (column
// types, non-negative counts) and reports failures as services.ErrValidation.
// Encoding is canonical, so re-encoding a decoded well-formed row reproduces
// it exactly.
package schema
