// Package student contains the Student entity and the repository port the
// rest of the service uses to store it.
//
// A Student owns its grades for their whole lifetime: deleting a student
// removes every grade recorded against it in the same transaction. The
// average grade is never stored here; it is derived from the live grade set
// by the grade package whenever it is reported.
//
// Identifiers are assigned by the store on Create and never change. Emails
// are unique across live students (case-sensitive exact match). The store
// enforces this with a unique constraint; EmailTaken is only a pre-check that
// gives a friendlier error before the write.
//
// Partial updates go through Patch, which distinguishes an absent field
// (nil) from a present one:
//
//	patch := student.Patch{Email: &newEmail}.Normalize()
//	changed := s.Apply(patch)
//
// Normalize trims whitespace and turns empty values into absent ones, so an
// explicit empty string never clears a field.
package student
