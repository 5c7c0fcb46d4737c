package types

// MaxReminderMinutes caps a reminder interval at one week.
const MaxReminderMinutes = 7 * 24 * 60
