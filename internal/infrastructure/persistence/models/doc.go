// Package models contains GORM persistence models of the transactional tables
// the analytics source reads from. The schema is owned by the ERP backend; these
// models exist to express the read queries and to seed test databases.
package models
