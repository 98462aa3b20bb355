package rate

func attemptsKey(ip, username string) string {
	return "login_attempts:" + ip + ":" + username
}

func lockoutKey(username string) string {
	return "username_expiry:" + username
}

func ipLockKey(ip string) string {
	return "ip_rate_limit:" + ip
}

func edgeKey(ip string) string {
	return "edge_requests:" + ip
}
