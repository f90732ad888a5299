package service

import (
	"fmt"
	"math/rand"
	"time"
)

var kst = time.FixedZone("KST", 9*60*60)

// GenerateOrderNumber возвращает номер вида ORD-YYYYMMDD-NNNN по дате в KST.
// Уникальность не гарантируется: её обеспечивает ограничение в БД.
func GenerateOrderNumber(at time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", at.In(kst).Format("20060102"), rand.Intn(10000))
}
