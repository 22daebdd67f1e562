package okr

// levelRank totally orders the organizational levels by breadth.
var levelRank = map[Level]int{
	LevelCompany:    0,
	LevelDepartment: 1,
	LevelTeam:       2,
	LevelIndividual: 3,
}

// AllowedParentLevels enumerates every legal parent level per child level.
// Kept as an explicit table so the rule set is exhaustively testable.
// Company-level objectives can never have a parent.
var AllowedParentLevels = map[Level][]Level{
	LevelCompany:    nil,
	LevelDepartment: {LevelCompany},
	LevelTeam:       {LevelCompany, LevelDepartment},
	LevelIndividual: {LevelCompany, LevelDepartment, LevelTeam},
}

// ValidateParent enforces the hierarchy placement rule: a parent is legal
// only if its level is strictly broader than the child's. A nil parent is
// always accepted.
func ValidateParent(childLevel Level, parent *Objective) error {
	if !ValidLevel(childLevel) {
		return &ValidationError{Field: "level", Reason: "unknown level " + string(childLevel)}
	}
	if parent == nil {
		return nil
	}
	if levelRank[parent.Level] >= levelRank[childLevel] {
		return &LevelMismatchError{ChildLevel: childLevel, ParentLevel: parent.Level}
	}
	return nil
}
