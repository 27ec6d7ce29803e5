package domain

import "database/sql"

// ActorID identifies who caused an event. It is stored verbatim.
type ActorID string

// SystemActor is recorded on events written by the scheduler rather than a user.
const SystemActor ActorID = "system"

func (a ActorID) NullString() sql.NullString {
	return sql.NullString{String: string(a), Valid: a != ""}
}
