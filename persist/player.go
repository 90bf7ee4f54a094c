package persist

import (
	"gopkg.in/guregu/null.v4"
)

// PlayerRow is the persisted shape of one player. Id is the primary key.
type PlayerRow struct {
	Id           string      `db:"id" json:"id"`
	Name         null.String `db:"name" json:"name"`
	Level        null.Int    `db:"level" json:"level"`
	Xp           null.Int    `db:"xp" json:"xp"`
	AllianceId   null.String `db:"alliance_id" json:"alliance_id"`
	BattlesWon   null.Int    `db:"battles_won" json:"battles_won"`
	KmWalked     null.Float  `db:"km_walked" json:"km_walked"`
	StaminaSpent null.Int    `db:"stamina_spent" json:"stamina_spent"`
	LastSeen     int64       `db:"last_seen" json:"last_seen"`
	Updated      int64       `db:"updated" json:"updated"`
}

var playerBatchUpsertQuery = `
INSERT INTO player (id, name, level, xp, alliance_id, battles_won, km_walked, stamina_spent, last_seen, updated)
VALUES (:id, :name, :level, :xp, :alliance_id, :battles_won, :km_walked, :stamina_spent, :last_seen, :updated)
ON DUPLICATE KEY UPDATE
name=VALUES(name),
level=VALUES(level),
xp=VALUES(xp),
alliance_id=VALUES(alliance_id),
battles_won=VALUES(battles_won),
km_walked=VALUES(km_walked),
stamina_spent=VALUES(stamina_spent),
last_seen=VALUES(last_seen),
updated=VALUES(updated)
`
