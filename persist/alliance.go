package persist

import (
	"gopkg.in/guregu/null.v4"
)

// AllianceRow is the persisted shape of one alliance. Id is the primary key.
type AllianceRow struct {
	Id          string      `db:"id" json:"id"`
	Name        null.String `db:"name" json:"name"`
	LeaderId    null.String `db:"leader_id" json:"leader_id"`
	MemberCount null.Int    `db:"member_count" json:"member_count"`
	Reputation  null.Int    `db:"reputation" json:"reputation"`
	Banner      null.String `db:"banner" json:"banner"`
	Updated     int64       `db:"updated" json:"updated"`
}

var allianceBatchUpsertQuery = `
INSERT INTO alliance (id, name, leader_id, member_count, reputation, banner, updated)
VALUES (:id, :name, :leader_id, :member_count, :reputation, :banner, :updated)
ON DUPLICATE KEY UPDATE
name=VALUES(name),
leader_id=VALUES(leader_id),
member_count=VALUES(member_count),
reputation=VALUES(reputation),
banner=VALUES(banner),
updated=VALUES(updated)
`
