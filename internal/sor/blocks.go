package sor

import "time"

func checkSize(r *Reader, entry DirectoryEntry) error {
	if consumed := r.Offset() - entry.Offset; consumed != entry.Size {
		return &SizeError{Block: entry.Name, Offset: entry.Offset, Declared: entry.Size, Consumed: consumed}
	}
	return nil
}

// DecodeGenParams decodes the GenParams block described by the directory
// entry. The v2.x layout appends a user offset distance field to the v1.x
// prefix; both layouts end with the operator and comment strings.
func DecodeGenParams(r *Reader, entry DirectoryEntry) (*GeneralParameters, error) {
	r.Seek(entry.Offset)
	gp := &GeneralParameters{Version: entry.Version}

	gp.Language = r.CString()
	gp.CableID = r.CString()
	gp.FiberID = r.CString()

	fiberType, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	gp.FiberType = FiberType(fiberType)

	wavelength, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	gp.WavelengthNM = int(wavelength)

	gp.LocationA = r.CString()
	gp.LocationB = r.CString()
	gp.CableCode = r.CString()
	gp.BuildCondition = BuildCondition(r.CString())

	if gp.UserOffset, err = r.Int32(); err != nil {
		return nil, err
	}
	if entry.Version.IsV2() {
		if gp.UserOffsetDM, err = r.Int32(); err != nil {
			return nil, err
		}
		gp.HasOffsetDM = true
	}

	gp.Operator = r.CString()
	gp.Comment = r.CString()

	if err := checkSize(r, entry); err != nil {
		return nil, err
	}
	return gp, nil
}

// DecodeSupParams decodes the SupParams block: a fixed run of seven
// Latin-1 strings identifying the OTDR instrument.
func DecodeSupParams(r *Reader, entry DirectoryEntry) (*SupplierParameters, error) {
	r.Seek(entry.Offset)
	sp := &SupplierParameters{Version: entry.Version}
	sp.SupplierName = r.CString()
	sp.MainframeID = r.CString()
	sp.MainframeSN = r.CString()
	sp.ModuleID = r.CString()
	sp.ModuleSN = r.CString()
	sp.SoftwareRevision = r.CString()
	sp.Other = r.CString()
	if err := checkSize(r, entry); err != nil {
		return nil, err
	}
	return sp, nil
}

// DecodeFxdParams decodes the FxdParams block holding the acquisition
// settings. The v2.x layout inserts distance variants of the offset and
// range fields and appends a two-character trace type tag.
func DecodeFxdParams(r *Reader, entry DirectoryEntry) (*AcquisitionParameters, error) {
	r.Seek(entry.Offset)
	blockEnd := entry.Offset + entry.Size
	ap := &AcquisitionParameters{Version: entry.Version}

	ts, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	ap.Timestamp = ts
	if ts > 0 {
		ap.DateTime = time.Unix(int64(ts), 0).UTC()
	}

	ap.DistanceUnits = r.CString()

	wavelength, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	ap.ActualWavelengthNM = TenthNanometers(wavelength)

	if ap.AcquisitionOffset, err = r.Int32(); err != nil {
		return nil, err
	}
	if entry.Version.IsV2() {
		if ap.AcquisitionOffsetDM, err = r.Int32(); err != nil {
			return nil, err
		}
		ap.HasOffsetDM = true
	}

	pulseCount, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	ap.PulseWidthsNS = make([]int, pulseCount)
	for i := range ap.PulseWidthsNS {
		pw, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		ap.PulseWidthsNS[i] = int(pw)
	}
	ap.DataSpacing = make([]uint32, pulseCount)
	for i := range ap.DataSpacing {
		if ap.DataSpacing[i], err = r.Uint32(); err != nil {
			return nil, err
		}
	}
	ap.PointsPerTrace = make([]uint32, pulseCount)
	for i := range ap.PointsPerTrace {
		if ap.PointsPerTrace[i], err = r.Uint32(); err != nil {
			return nil, err
		}
	}

	gi, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	ap.GroupIndex = GroupIndexValue(gi)

	backscatter, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	ap.BackscatterDB = BackscatterDB(backscatter)

	if ap.Averages, err = r.Uint32(); err != nil {
		return nil, err
	}
	avgTime, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	ap.AveragingTimeS = int(avgTime)

	if ap.Range, err = r.Uint32(); err != nil {
		return nil, err
	}
	if entry.Version.IsV2() {
		if ap.RangeDM, err = r.Int32(); err != nil {
			return nil, err
		}
		ap.HasRangeDM = true
	}

	if ap.FrontPanelOffset, err = r.Int32(); err != nil {
		return nil, err
	}
	if ap.NoiseFloor, err = r.Uint16(); err != nil {
		return nil, err
	}
	if ap.NoiseFloorScale, err = r.Uint16(); err != nil {
		return nil, err
	}
	if ap.PowerOffset, err = r.Uint16(); err != nil {
		return nil, err
	}

	lossThr, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	ap.LossThresholdDB = MilliDB(int32(lossThr))

	reflThr, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	ap.ReflectanceThreshDB = -MilliDB(int32(reflThr))

	eofThr, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	ap.EndOfFiberThreshDB = MilliDB(int32(eofThr))

	if entry.Version.IsV2() && r.Offset()+2 <= blockEnd {
		tt, err := r.Latin1(2)
		if err != nil {
			return nil, err
		}
		ap.TraceType = TraceType(tt)
		ap.HasTraceType = true
	}

	if err := checkSize(r, entry); err != nil {
		return nil, err
	}
	return ap, nil
}

// DecodeDataPts decodes the DataPts block header and records the raw sample
// span without expanding it.
func DecodeDataPts(r *Reader, entry DirectoryEntry) (*TraceData, error) {
	r.Seek(entry.Offset)
	td := &TraceData{Version: entry.Version}

	points, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	td.TotalPoints = points

	traces, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	td.TraceCount = int(traces)

	span := entry.Size - (r.Offset() - entry.Offset)
	if span < 0 {
		return nil, &SizeError{Block: entry.Name, Offset: entry.Offset, Declared: entry.Size, Consumed: r.Offset() - entry.Offset}
	}
	raw, err := r.Bytes(span)
	if err != nil {
		return nil, err
	}
	td.raw = raw
	td.RawBytes = len(raw)

	if err := checkSize(r, entry); err != nil {
		return nil, err
	}
	return td, nil
}
