package logging

// ForCategory 返回带分类的 logger，logger 为 nil 时返回 NopLogger
func ForCategory(logger Logger, category string) Logger {
	if logger == nil {
		return NewNopLogger()
	}
	return logger.WithCategory(category)
}
