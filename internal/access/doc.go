// Package access filters store reads and writes by role.
//
// The Guard is a process safeguard for honest clients. The store credential
// it wraps can read and write every table, so the Guard is not a security
// boundary: anyone holding the credential can bypass it.
package access
