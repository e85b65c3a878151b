package service

const (
	DefaultCronIntervalHours = 24
	DefaultRetentionDays     = 30
)
