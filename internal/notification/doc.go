// Package notification turns an alarm's next fire time into a platform notification.
package notification
